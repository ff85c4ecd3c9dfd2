// Package compute provides the pure numeric kernels behind chart rendering:
// grouping, histograms, box statistics, density estimation, and correlation.
package compute

import (
	"math"
	"sort"
)

// sortedCopy returns an ascending copy of vals.
func sortedCopy(vals []float64) []float64 {
	out := make([]float64, len(vals))
	copy(out, vals)
	sort.Float64s(out)
	return out
}

// quantile returns the q-th quantile of sorted values using linear
// interpolation between the two nearest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// mean returns the arithmetic mean, 0 for empty input.
func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// sampleStd returns the sample standard deviation, 0 when fewer than two
// values are present.
func sampleStd(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(n-1))
}
