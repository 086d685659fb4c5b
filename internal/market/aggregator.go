// Package market fetches current prices and historical closes from the
// exchange and derives the summary statistics the sizing engine consumes.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

// DefaultMaxPeriods is the Coinbase single-request candle limit.
const DefaultMaxPeriods = 350

// Source is the exchange capability the aggregator reads from.
type Source interface {
	CurrentPrice(ctx context.Context, productID string) (float64, error)
	Candles(ctx context.Context, productID string, granularity domain.Granularity, count int) ([]domain.Candle, error)
}

// Aggregator turns raw exchange data into price series and statistics.
type Aggregator struct {
	src        Source
	maxPeriods int
	now        func() time.Time
	logger     *slog.Logger
}

// NewAggregator creates an Aggregator reading from src. maxPeriods is the
// upstream single-request limit; values <= 0 fall back to DefaultMaxPeriods.
func NewAggregator(src Source, maxPeriods int, logger *slog.Logger) *Aggregator {
	if maxPeriods <= 0 {
		maxPeriods = DefaultMaxPeriods
	}
	return &Aggregator{
		src:        src,
		maxPeriods: maxPeriods,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "aggregator")),
	}
}

// MaxPeriods returns the largest period count HistoricalCloses accepts.
func (a *Aggregator) MaxPeriods() int { return a.maxPeriods }

// CurrentPrice returns the latest traded price for productID. Upstream
// failures and non-positive prices are reported as domain.ErrDataUnavailable.
func (a *Aggregator) CurrentPrice(ctx context.Context, productID string) (float64, error) {
	price, err := a.src.CurrentPrice(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("market: current price %s: %w: %w", productID, domain.ErrDataUnavailable, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("market: current price %s: %w: got %v", productID, domain.ErrDataUnavailable, price)
	}
	return price, nil
}

// ValidateHorizon checks a horizon against the granularity set and the
// upstream single-request limit.
func (a *Aggregator) ValidateHorizon(periods int, granularity domain.Granularity) error {
	if !granularity.Valid() {
		return fmt.Errorf("market: %w: unknown granularity %q", domain.ErrInvalidHorizon, granularity)
	}
	if periods <= 0 || periods > a.maxPeriods {
		return fmt.Errorf("market: %w: periods %d outside 1..%d", domain.ErrInvalidHorizon, periods, a.maxPeriods)
	}
	return nil
}

// HistoricalCloses returns up to periods closing prices at granularity,
// oldest first. Fewer points are returned when the exchange has less
// history. An upstream error or an empty result is reported as
// domain.ErrDataUnavailable.
func (a *Aggregator) HistoricalCloses(ctx context.Context, productID string, periods int, granularity domain.Granularity) (domain.PriceSeries, error) {
	if err := a.ValidateHorizon(periods, granularity); err != nil {
		return nil, err
	}

	candles, err := a.src.Candles(ctx, productID, granularity, periods)
	if err != nil {
		return nil, fmt.Errorf("market: closes %s %dx%s: %w: %w", productID, periods, granularity, domain.ErrDataUnavailable, err)
	}

	series := toSeries(candles)
	if len(series) == 0 {
		return nil, fmt.Errorf("market: closes %s %dx%s: %w: no candles returned", productID, periods, granularity, domain.ErrDataUnavailable)
	}
	if len(series) > periods {
		series = series[len(series)-periods:]
	}
	return series, nil
}

// Snapshot gathers the current price and the three horizons for one pair and
// derives the averages and percentile band. The current price and the short
// and medium horizons are required; a failure on the long horizon only
// disables the buy-window band.
func (a *Aggregator) Snapshot(ctx context.Context, productID string, params domain.StrategyParams) (domain.MarketSnapshot, error) {
	snap := domain.MarketSnapshot{ProductID: productID, FetchedAt: a.now().UTC()}

	price, err := a.CurrentPrice(ctx, productID)
	if err != nil {
		return snap, err
	}
	snap.Price = price

	snap.Short, err = a.HistoricalCloses(ctx, productID, params.Short.Periods, params.Short.Granularity)
	if err != nil {
		return snap, err
	}
	snap.Medium, err = a.HistoricalCloses(ctx, productID, params.Medium.Periods, params.Medium.Granularity)
	if err != nil {
		return snap, err
	}

	snap.ShortAvg, snap.HasShort = Average(snap.Short.Closes())
	snap.MediumAvg, snap.HasMedium = Average(snap.Medium.Closes())

	snap.Long, err = a.HistoricalCloses(ctx, productID, params.Long.Periods, params.Long.Granularity)
	if err != nil {
		a.logger.WarnContext(ctx, "long horizon unavailable, buy window disabled",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return snap, nil
	}

	closes := snap.Long.Closes()
	last, okLast := snap.Long.Last()
	lower, okLower := Percentile(closes, params.LowerPercentile)
	upper, okUpper := Percentile(closes, params.UpperPercentile)
	if okLast && okLower && okUpper {
		snap.LongLast, snap.Lower, snap.Upper, snap.HasBand = last, lower, upper, true
	}

	a.logger.DebugContext(ctx, "snapshot ready",
		slog.String("product_id", productID),
		slog.Float64("price", snap.Price),
		slog.Float64("short_avg", snap.ShortAvg),
		slog.Float64("medium_avg", snap.MediumAvg),
		slog.Int("long_points", len(snap.Long)),
	)
	return snap, nil
}

// toSeries sorts candles ascending by start time, drops duplicate buckets
// (keeping the last one seen) and non-positive closes.
func toSeries(candles []domain.Candle) domain.PriceSeries {
	sorted := make([]domain.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Close > 0 && !c.Start.IsZero() {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	out := make(domain.PriceSeries, 0, len(sorted))
	for _, c := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(c.Start) {
			out[n-1].Close = c.Close
			continue
		}
		out = append(out, domain.PricePoint{Time: c.Start, Close: c.Close})
	}
	return out
}
