package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseGranularity(t *testing.T) {
	g, ok := ParseGranularity(" one_day ")
	assert.True(t, ok)
	assert.Equal(t, GranularityOneDay, g)
	assert.Equal(t, 24*time.Hour, g.Duration())

	_, ok = ParseGranularity("ONE_WEEK")
	assert.False(t, ok)
}

func TestHorizonSpan(t *testing.T) {
	h := Horizon{Periods: 24, Granularity: GranularityOneHour}
	assert.Equal(t, 24*time.Hour, h.Span())
}

func TestPriceSeries_LastAndCloses(t *testing.T) {
	var empty PriceSeries
	_, ok := empty.Last()
	assert.False(t, ok)
	assert.Empty(t, empty.Closes())

	now := time.Now()
	s := PriceSeries{
		{Time: now.Add(-2 * time.Hour), Close: 10},
		{Time: now.Add(-time.Hour), Close: 11},
		{Time: now, Close: 12},
	}
	last, ok := s.Last()
	assert.True(t, ok)
	assert.Equal(t, 12.0, last)
	assert.Equal(t, []float64{10, 11, 12}, s.Closes())
}

func TestRunReport_CountsAndFailed(t *testing.T) {
	r := RunReport{Outcomes: []PairOutcome{
		{ProductID: "BTC-USDC", Status: OutcomePlaced},
		{ProductID: "ETH-USDC", Status: OutcomeSkipped},
	}}
	assert.False(t, r.Failed())
	assert.Equal(t, 1, r.Counts()[OutcomePlaced])
	assert.Equal(t, 0, r.Counts()[OutcomeFailed])

	r.Outcomes = append(r.Outcomes, NewFailedOutcome("SOL-USDC", nil, ErrSubmissionFailure))
	assert.True(t, r.Failed())
	assert.Equal(t, "submission_failure", r.Outcomes[2].Kind)
}
