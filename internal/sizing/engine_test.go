package sizing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

const tol = 1e-9

func testParams() domain.StrategyParams {
	return domain.StrategyParams{
		K:                       1.0,
		MinShrink:               0.25,
		MaxBoost:                3.0,
		WindowBoost:             1.25,
		WindowCut:               0.75,
		ReserveFraction:         0.2,
		DeepDipReleaseThreshold: 0.15,
		ReserveReleaseBoost:     1.2,
		PerRunCapUSD:            100,
		MinOrderUSD:             1,
	}
}

func testPair(baseline float64) domain.Pair {
	return domain.Pair{
		ProductID:          "BTC-USDC",
		BaselineUSD:        baseline,
		PriceAdjustmentPct: 0.01,
		PostOnly:           true,
	}
}

// flatSnapshot has price equal to both averages and no band, which sizes to
// exactly 1 - reserve_fraction.
func flatSnapshot(price float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ProductID: "BTC-USDC",
		Price:     price,
		ShortAvg:  price,
		HasShort:  true,
		MediumAvg: price,
		HasMedium: true,
	}
}

func scenarioSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ProductID: "BTC-USDC",
		Price:     100,
		ShortAvg:  110,
		HasShort:  true,
		MediumAvg: 120,
		HasMedium: true,
		LongLast:  85,
		Lower:     90,
		Upper:     130,
		HasBand:   true,
	}
}

func TestDynamic_Zones(t *testing.T) {
	tests := []struct {
		name                 string
		price, short, medium float64
		k                    float64
		want                 float64
		zone                 domain.TrendZone
	}{
		{"cheap below both", 100, 110, 120, 1, 1 + 10.0/110, domain.TrendZoneCheap},
		{"cheap floor with negative k", 100, 110, 120, -1, 1, domain.TrendZoneCheap},
		{"expensive above both", 120, 100, 110, 1, 0.8, domain.TrendZoneExpensive},
		{"expensive cap with negative k", 120, 100, 110, -1, 1, domain.TrendZoneExpensive},
		{"mixed below medium only", 105, 100, 110, 1, 0.5*0.95 + 0.5, domain.TrendZoneMixed},
		{"mixed below short only", 105, 110, 100, 1, 0.5*(1+5.0/110) + 0.5, domain.TrendZoneMixed},
		{"equal to both", 100, 100, 100, 1, 1, domain.TrendZoneMixed},
		{"equal to short, below medium", 100, 100, 120, 1, 1, domain.TrendZoneMixed},
		{"zero k is neutral", 100, 110, 120, 0, 1, domain.TrendZoneCheap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, zone := Dynamic(tt.price, tt.short, tt.medium, tt.k)
			assert.InDelta(t, tt.want, got, tol)
			assert.Equal(t, tt.zone, zone)
		})
	}
}

func TestDynamic_BoundaryContinuity(t *testing.T) {
	for _, k := range []float64{0, 0.5, 1, 2, 10} {
		dyn, _ := Dynamic(250, 250, 250, k)
		assert.Equal(t, 1.0, dyn, "k=%v", k)
	}
}

func TestDynamic_CheapFloorNeverLowersValue(t *testing.T) {
	const short, medium = 110.0, 120.0
	for _, k := range []float64{-2, -0.5, 0, 0.5, 1, 3} {
		for price := 109.0; price > 1; price -= 3.5 {
			unfloored := 1 + k*(short-price)/short
			got, zone := Dynamic(price, short, medium, k)
			require.Equal(t, domain.TrendZoneCheap, zone)
			assert.GreaterOrEqual(t, got, unfloored, "k=%v price=%v", k, price)
			assert.GreaterOrEqual(t, got, 1.0)
		}
	}
}

func TestDynamic_ZeroShortAverageIsFinite(t *testing.T) {
	dyn, _ := Dynamic(1, 0, 0, 1)
	assert.False(t, math.IsNaN(dyn))
	assert.Less(t, dyn, 0.0)
}

func TestWindow(t *testing.T) {
	p := testParams()
	band := func(last float64) domain.MarketSnapshot {
		return domain.MarketSnapshot{LongLast: last, Lower: 90, Upper: 130, HasBand: true}
	}
	tests := []struct {
		name string
		snap domain.MarketSnapshot
		want float64
		zone domain.WindowZone
	}{
		{"below lower", band(85), 1.25, domain.WindowZoneCheap},
		{"at lower", band(90), 1.25, domain.WindowZoneCheap},
		{"inside", band(100), 1, domain.WindowZoneNormal},
		{"at upper", band(130), 0.75, domain.WindowZoneExpensive},
		{"above upper", band(200), 0.75, domain.WindowZoneExpensive},
		{"unavailable", domain.MarketSnapshot{LongLast: 1, Lower: 90, Upper: 130}, 1, domain.WindowZoneUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, zone := Window(tt.snap, p)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.zone, zone)
		})
	}
}

func TestReserve(t *testing.T) {
	p := testParams()

	got, dip := Reserve(100, 100, p)
	assert.False(t, dip)
	assert.InDelta(t, 0.8, got, tol)

	got, dip = Reserve(100, 120, p)
	assert.True(t, dip)
	assert.InDelta(t, 1.5, got, tol)

	got, dip = Reserve(103, 120, p)
	assert.False(t, dip, "103 is above 0.85*120")
	assert.InDelta(t, 0.8, got, tol)
}

func TestReserve_ThresholdIsInclusive(t *testing.T) {
	p := testParams()
	p.DeepDipReleaseThreshold = 0.5

	_, dip := Reserve(50, 100, p)
	assert.True(t, dip)
	_, dip = Reserve(50.01, 100, p)
	assert.False(t, dip)
}

func TestReserve_ReleaseCancelsHoldBack(t *testing.T) {
	p := testParams()
	p.ReserveReleaseBoost = 1

	normal, _ := Reserve(100, 100, p)
	released, _ := Reserve(10, 100, p)
	assert.InDelta(t, 1.0, normal*released, tol)
}

func TestReserve_FullReserveIsFloored(t *testing.T) {
	p := testParams()
	p.ReserveFraction = 1

	got, dip := Reserve(10, 100, p)
	assert.True(t, dip)
	assert.InDelta(t, p.ReserveReleaseBoost/Epsilon, got, 1)
}

func TestClamp(t *testing.T) {
	const lo, hi = 0.25, 3.0
	for _, v := range []float64{-10, 0, 0.1, 0.25, 0.5, 1, 2.99, 3, 3.01, 1e9} {
		got := Clamp(v, lo, hi)
		assert.GreaterOrEqual(t, got, lo)
		assert.LessOrEqual(t, got, hi)
		if v >= lo && v <= hi {
			assert.Equal(t, v, got)
		}
	}
	assert.Equal(t, lo, Clamp(0.1, lo, hi))
	assert.Equal(t, hi, Clamp(7, lo, hi))
}

func TestLimitPrice(t *testing.T) {
	tests := []struct {
		price    float64
		adj      float64
		decimals int32
		want     string
	}{
		{100, 0.01, 0, "99"},
		{64123.87, 0.05, 0, "60917"},
		{2.3456, 0.05, 2, "2.22"},
		{0.5, 0.05, 0, "0"},
		{100, 0, 0, "100"},
	}
	for _, tt := range tests {
		got := LimitPrice(tt.price, tt.adj, tt.decimals)
		assert.Equal(t, tt.want, got.String(), "price=%v adj=%v", tt.price, tt.adj)
	}
}

func TestBaseSize(t *testing.T) {
	assert.Equal(t, "0.1", BaseSize(10, decimal.NewFromInt(100)).String())
	assert.Equal(t, "0.20661157", BaseSize(20.454545454545453, decimal.NewFromInt(99)).StringFixed(8))
	assert.True(t, BaseSize(1, decimal.Zero).IsPositive(), "zero limit is floored")
}

func TestSize_EndToEndScenario(t *testing.T) {
	e := NewEngine(testParams())

	res, err := e.Size(scenarioSnapshot(), testPair(10))
	require.NoError(t, err)
	require.False(t, res.Skip)

	assert.Equal(t, domain.TrendZoneCheap, res.Zone)
	assert.InDelta(t, 1.090909090909, res.Dynamic, 1e-9)
	assert.Equal(t, domain.WindowZoneCheap, res.WindowZone)
	assert.Equal(t, 1.25, res.Window)
	assert.True(t, res.DeepDip)
	assert.InDelta(t, 1.5, res.Reserve, tol)
	assert.InDelta(t, 22.5/11, res.Raw, tol)
	assert.InDelta(t, 22.5/11, res.Multiplier, tol)
	assert.InDelta(t, 225.0/11, res.EffectiveUSD, tol)
	assert.False(t, res.Capped)
	assert.Equal(t, "99", res.LimitPrice.String())
	assert.Equal(t, "0.20661157", res.BaseSize.StringFixed(8))
	assert.Nil(t, res.SkipReason)
}

func TestSize_CapIsExact(t *testing.T) {
	e := NewEngine(testParams())

	res, err := e.Size(scenarioSnapshot(), testPair(60))
	require.NoError(t, err)
	require.False(t, res.Skip)
	assert.True(t, res.Capped)
	assert.Equal(t, 100.0, res.EffectiveUSD)
	assert.Equal(t, "1.01010101", res.BaseSize.StringFixed(8))
}

func TestSize_ClampBounds(t *testing.T) {
	p := testParams()
	p.K = 10
	p.PerRunCapUSD = 1000
	e := NewEngine(p)

	boosted, err := e.Size(scenarioSnapshot(), testPair(10))
	require.NoError(t, err)
	assert.Greater(t, boosted.Raw, p.MaxBoost)
	assert.Equal(t, p.MaxBoost, boosted.Multiplier)
	assert.InDelta(t, 30.0, boosted.EffectiveUSD, tol)

	expensive := domain.MarketSnapshot{
		Price: 200, ShortAvg: 100, HasShort: true, MediumAvg: 100, HasMedium: true,
		LongLast: 150, Lower: 90, Upper: 130, HasBand: true,
	}
	shrunk, err := e.Size(expensive, testPair(10))
	require.NoError(t, err)
	assert.Less(t, shrunk.Raw, p.MinShrink)
	assert.Equal(t, p.MinShrink, shrunk.Multiplier)
	assert.InDelta(t, 2.5, shrunk.EffectiveUSD, tol)
}

func TestSize_DustGuard(t *testing.T) {
	e := NewEngine(testParams())

	// flat snapshot sizes to baseline * 0.8
	res, err := e.Size(flatSnapshot(100), testPair(0.99/0.8))
	require.NoError(t, err)
	assert.InDelta(t, 0.99, res.EffectiveUSD, tol)
	assert.True(t, res.Skip)
	assert.ErrorIs(t, res.SkipReason, domain.ErrDustOrder)
	assert.True(t, res.LimitPrice.IsZero())
	assert.True(t, res.BaseSize.IsZero())

	res, err = e.Size(flatSnapshot(100), testPair(1.25))
	require.NoError(t, err)
	assert.False(t, res.Skip, "exactly the minimum is placed")
}

func TestSize_CapAppliesBeforeDustGuard(t *testing.T) {
	p := testParams()
	p.PerRunCapUSD = 0.5
	e := NewEngine(p)

	res, err := e.Size(flatSnapshot(100), testPair(10))
	require.NoError(t, err)
	assert.True(t, res.Capped)
	assert.True(t, res.Skip)
	assert.ErrorIs(t, res.SkipReason, domain.ErrDustOrder)
}

func TestSize_InsufficientHistory(t *testing.T) {
	e := NewEngine(testParams())

	for _, snap := range []domain.MarketSnapshot{
		{Price: 100, MediumAvg: 100, HasMedium: true},
		{Price: 100, ShortAvg: 100, HasShort: true},
		{Price: 100},
	} {
		res, err := e.Size(snap, testPair(10))
		require.NoError(t, err)
		assert.True(t, res.Skip)
		assert.ErrorIs(t, res.SkipReason, domain.ErrInsufficientHistory)
	}
}

func TestSize_InvalidPriceIsError(t *testing.T) {
	e := NewEngine(testParams())

	for _, price := range []float64{0, -1} {
		snap := flatSnapshot(100)
		snap.Price = price
		_, err := e.Size(snap, testPair(10))
		assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	}
}

func TestSize_PriceCeiling(t *testing.T) {
	e := NewEngine(testParams())
	pair := testPair(10)
	pair.PriceCeiling = 90

	res, err := e.Size(flatSnapshot(100), pair)
	require.NoError(t, err)
	assert.True(t, res.Skip)
	assert.ErrorIs(t, res.SkipReason, domain.ErrAbovePriceCeiling)

	pair.PriceCeiling = 100
	res, err = e.Size(flatSnapshot(100), pair)
	require.NoError(t, err)
	assert.False(t, res.Skip, "ceiling is inclusive")
}

func TestSize_LimitPriceTooLow(t *testing.T) {
	e := NewEngine(testParams())
	pair := testPair(10)
	pair.PriceAdjustmentPct = 0.05

	res, err := e.Size(flatSnapshot(0.5), pair)
	require.NoError(t, err)
	assert.True(t, res.Skip)
	assert.ErrorIs(t, res.SkipReason, domain.ErrLimitPriceTooLow)

	pair.PriceDecimals = 4
	res, err = e.Size(flatSnapshot(0.5), pair)
	require.NoError(t, err)
	require.False(t, res.Skip)
	assert.Equal(t, "0.475", res.LimitPrice.String())
	assert.Equal(t, "16.84210526", res.BaseSize.StringFixed(8))
}

func TestSize_WithoutBandWindowIsNeutral(t *testing.T) {
	e := NewEngine(testParams())
	snap := scenarioSnapshot()
	snap.HasBand = false

	res, err := e.Size(snap, testPair(10))
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Window)
	assert.Equal(t, domain.WindowZoneUnavailable, res.WindowZone)
	assert.InDelta(t, 18.0/11, res.Raw, tol)
}

func TestSize_BranchCombinations(t *testing.T) {
	p := testParams()
	p.PerRunCapUSD = 1000
	e := NewEngine(p)

	prices := []struct {
		name  string
		price float64
		zone  domain.TrendZone
		deep  bool
	}{
		{"cheap deep", 80, domain.TrendZoneCheap, true},
		{"cheap shallow", 105, domain.TrendZoneCheap, false},
		{"mixed", 115, domain.TrendZoneMixed, false},
		{"expensive", 140, domain.TrendZoneExpensive, false},
	}
	windows := []struct {
		last float64
		zone domain.WindowZone
	}{
		{80, domain.WindowZoneCheap},
		{100, domain.WindowZoneNormal},
		{140, domain.WindowZoneExpensive},
	}

	for _, pc := range prices {
		for _, w := range windows {
			snap := domain.MarketSnapshot{
				Price: pc.price, ShortAvg: 110, HasShort: true, MediumAvg: 120, HasMedium: true,
				LongLast: w.last, Lower: 90, Upper: 130, HasBand: true,
			}
			res, err := e.Size(snap, testPair(10))
			require.NoError(t, err)

			assert.Equal(t, pc.zone, res.Zone, pc.name)
			assert.Equal(t, w.zone, res.WindowZone, pc.name)
			assert.Equal(t, pc.deep, res.DeepDip, pc.name)
			assert.InDelta(t, res.Dynamic*res.Window*res.Reserve, res.Raw, tol)
			assert.Equal(t, Clamp(res.Raw, p.MinShrink, p.MaxBoost), res.Multiplier)
			assert.InDelta(t, 10*res.Multiplier, res.EffectiveUSD, tol)
			assert.False(t, res.Skip)
		}
	}
}

func TestSize_Idempotent(t *testing.T) {
	e := NewEngine(testParams())

	first, err := e.Size(scenarioSnapshot(), testPair(10))
	require.NoError(t, err)
	second, err := e.Size(scenarioSnapshot(), testPair(10))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
