package domain

import (
	"strings"
	"time"
)

// Granularity is the width of a historical candle bucket. Values match the
// Coinbase Advanced Trade enumeration.
type Granularity string

const (
	GranularityOneMinute     Granularity = "ONE_MINUTE"
	GranularityFiveMinute    Granularity = "FIVE_MINUTE"
	GranularityFifteenMinute Granularity = "FIFTEEN_MINUTE"
	GranularityThirtyMinute  Granularity = "THIRTY_MINUTE"
	GranularityOneHour       Granularity = "ONE_HOUR"
	GranularityTwoHour       Granularity = "TWO_HOUR"
	GranularitySixHour       Granularity = "SIX_HOUR"
	GranularityOneDay        Granularity = "ONE_DAY"
)

var granularityDurations = map[Granularity]time.Duration{
	GranularityOneMinute:     time.Minute,
	GranularityFiveMinute:    5 * time.Minute,
	GranularityFifteenMinute: 15 * time.Minute,
	GranularityThirtyMinute:  30 * time.Minute,
	GranularityOneHour:       time.Hour,
	GranularityTwoHour:       2 * time.Hour,
	GranularitySixHour:       6 * time.Hour,
	GranularityOneDay:        24 * time.Hour,
}

// ParseGranularity normalises s (case-insensitive) into a Granularity. The
// second return value is false when s is not a known bucket width.
func ParseGranularity(s string) (Granularity, bool) {
	g := Granularity(strings.ToUpper(strings.TrimSpace(s)))
	return g, g.Valid()
}

// Valid reports whether g is one of the supported bucket widths.
func (g Granularity) Valid() bool {
	_, ok := granularityDurations[g]
	return ok
}

// Duration returns the bucket width, or zero for an unknown granularity.
func (g Granularity) Duration() time.Duration {
	return granularityDurations[g]
}

// Horizon is a lookback window: a number of periods of a given granularity.
type Horizon struct {
	Periods     int
	Granularity Granularity
}

// Span returns the wall-clock length covered by the horizon.
func (h Horizon) Span() time.Duration {
	return time.Duration(h.Periods) * h.Granularity.Duration()
}

// Candle is a single OHLCV bucket as returned by the exchange.
type Candle struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PricePoint is one closing price in a PriceSeries.
type PricePoint struct {
	Time  time.Time
	Close float64
}

// PriceSeries is an ordered sequence of closes, oldest first, with strictly
// increasing timestamps.
type PriceSeries []PricePoint

// Closes returns the closing prices in series order.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

// Last returns the newest close. The second return value is false for an
// empty series.
func (s PriceSeries) Last() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Close, true
}

// MarketSnapshot is everything the sizing engine needs about one pair,
// gathered fresh for a single run.
type MarketSnapshot struct {
	ProductID string
	Price     float64
	FetchedAt time.Time

	Short  PriceSeries
	Medium PriceSeries
	Long   PriceSeries

	ShortAvg  float64
	HasShort  bool
	MediumAvg float64
	HasMedium bool

	// Buy-window band over the long horizon. HasBand is false when the long
	// series could not be fetched or was empty.
	LongLast float64
	Lower    float64
	Upper    float64
	HasBand  bool
}
