// Package sizing turns a market snapshot into a bounded purchase amount and a
// post-only limit price.
package sizing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

// Epsilon floors denominators that could otherwise approach zero.
const Epsilon = 1e-9

// BaseSizeDecimals is the precision of the base-asset order size.
const BaseSizeDecimals = 8

// Engine sizes orders against a fixed set of strategy parameters. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	params domain.StrategyParams
}

// NewEngine creates an Engine for params.
func NewEngine(params domain.StrategyParams) *Engine {
	return &Engine{params: params}
}

// Params returns the strategy parameters the engine was built with.
func (e *Engine) Params() domain.StrategyParams { return e.params }

// Size computes the order for pair from snap.
//
// A skip is a normal result: Skip is set and SkipReason carries one of
// domain.ErrInsufficientHistory, domain.ErrDustOrder,
// domain.ErrAbovePriceCeiling or domain.ErrLimitPriceTooLow. An error is
// returned only for inputs that cannot be sized at all.
func (e *Engine) Size(snap domain.MarketSnapshot, pair domain.Pair) (domain.SizingResult, error) {
	p := e.params
	res := domain.SizingResult{
		ProductID:  pair.ProductID,
		Price:      snap.Price,
		ShortAvg:   snap.ShortAvg,
		MediumAvg:  snap.MediumAvg,
		WindowZone: domain.WindowZoneUnavailable,
	}

	if snap.Price <= 0 || math.IsNaN(snap.Price) || math.IsInf(snap.Price, 0) {
		return res, fmt.Errorf("sizing: %s: %w: %v", pair.ProductID, domain.ErrInvalidPrice, snap.Price)
	}
	if pair.PriceCeiling > 0 && snap.Price > pair.PriceCeiling {
		return skip(res, fmt.Errorf("%w: %v > %v", domain.ErrAbovePriceCeiling, snap.Price, pair.PriceCeiling)), nil
	}
	if !snap.HasShort || !snap.HasMedium {
		return skip(res, fmt.Errorf("%w: short=%t medium=%t", domain.ErrInsufficientHistory, snap.HasShort, snap.HasMedium)), nil
	}

	res.Dynamic, res.Zone = Dynamic(snap.Price, snap.ShortAvg, snap.MediumAvg, p.K)
	res.Window, res.WindowZone = Window(snap, p)
	res.Reserve, res.DeepDip = Reserve(snap.Price, snap.MediumAvg, p)

	res.Raw = res.Dynamic * res.Window * res.Reserve
	res.Multiplier = Clamp(res.Raw, p.MinShrink, p.MaxBoost)

	res.EffectiveUSD = pair.BaselineUSD * res.Multiplier
	if p.PerRunCapUSD > 0 && res.EffectiveUSD > p.PerRunCapUSD {
		res.EffectiveUSD = p.PerRunCapUSD
		res.Capped = true
	}
	if res.EffectiveUSD < p.MinOrderUSD {
		return skip(res, fmt.Errorf("%w: %.2f < %.2f USD", domain.ErrDustOrder, res.EffectiveUSD, p.MinOrderUSD)), nil
	}

	res.LimitPrice = LimitPrice(snap.Price, pair.PriceAdjustmentPct, pair.PriceDecimals)
	if !res.LimitPrice.IsPositive() {
		return skip(res, fmt.Errorf("%w: price %v adjusted by %v", domain.ErrLimitPriceTooLow, snap.Price, pair.PriceAdjustmentPct)), nil
	}
	res.BaseSize = BaseSize(res.EffectiveUSD, res.LimitPrice)
	return res, nil
}

func skip(res domain.SizingResult, reason error) domain.SizingResult {
	res.Skip = true
	res.SkipReason = reason
	return res
}

// Dynamic returns the trend multiplier for price against the short and medium
// averages, together with the zone that shaped it.
//
// Below both averages the multiplier is floored at 1, above both it is capped
// at 1, and in between it is pulled halfway towards 1.
func Dynamic(price, shortAvg, mediumAvg, k float64) (float64, domain.TrendZone) {
	dyn := 1 + k*(shortAvg-price)/math.Max(shortAvg, Epsilon)
	switch {
	case price < shortAvg && price < mediumAvg:
		return math.Max(dyn, 1), domain.TrendZoneCheap
	case price > shortAvg && price > mediumAvg:
		return math.Min(dyn, 1), domain.TrendZoneExpensive
	default:
		return 0.5*dyn + 0.5, domain.TrendZoneMixed
	}
}

// Window returns the buy-window multiplier from the long-horizon percentile
// band. Without a band it is 1.
func Window(snap domain.MarketSnapshot, p domain.StrategyParams) (float64, domain.WindowZone) {
	switch {
	case !snap.HasBand:
		return 1, domain.WindowZoneUnavailable
	case snap.LongLast <= snap.Lower:
		return p.WindowBoost, domain.WindowZoneCheap
	case snap.LongLast >= snap.Upper:
		return p.WindowCut, domain.WindowZoneExpensive
	default:
		return 1, domain.WindowZoneNormal
	}
}

// Reserve returns the reserve multiplier and whether the deep-dip release
// fired. Normally a fraction of the baseline is held back; once price falls
// far enough below the medium average the hold-back is undone and the release
// boost applied on top.
func Reserve(price, mediumAvg float64, p domain.StrategyParams) (float64, bool) {
	kept := 1 - p.ReserveFraction
	if price <= (1-p.DeepDipReleaseThreshold)*mediumAvg {
		return (1 / math.Max(Epsilon, kept)) * p.ReserveReleaseBoost, true
	}
	return kept, false
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// LimitPrice is price reduced by adjustment and floored to decimals places.
func LimitPrice(price, adjustment float64, decimals int32) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(adjustment))
	return decimal.NewFromFloat(price).Mul(factor).RoundFloor(decimals)
}

// BaseSize is the base-asset quantity bought with usd at limit, rounded to
// BaseSizeDecimals places.
func BaseSize(usd float64, limit decimal.Decimal) decimal.Decimal {
	floor := decimal.NewFromFloat(Epsilon)
	if limit.LessThan(floor) {
		limit = floor
	}
	return decimal.NewFromFloat(usd).DivRound(limit, BaseSizeDecimals)
}
