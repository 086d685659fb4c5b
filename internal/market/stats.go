package market

import (
	"math"
	"sort"
)

// Average returns the arithmetic mean of values. The second return value is
// false when values is empty.
func Average(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// Percentile returns the p-th percentile of values, p in [0,100], using
// linear interpolation between the two ranks bracketing k = (n-1)*p/100.
// p <= 0 yields the minimum and p >= 100 the maximum. values is not
// modified. The second return value is false when values is empty.
func Percentile(values []float64, p float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0], true
	}
	if p >= 100 {
		return sorted[n-1], true
	}

	k := float64(n-1) * p / 100
	f := math.Floor(k)
	c := math.Ceil(k)
	lo := sorted[int(f)]
	if f == c {
		return lo, true
	}
	hi := sorted[int(c)]
	return lo + (hi-lo)*(k-f), true
}
