package compute

import "math"

// HistogramResult holds equal-width bin edges and per-bin counts.
// Edges has one more entry than Counts.
type HistogramResult struct {
	Edges  []float64
	Counts []int
}

// Histogram bins vals into equal-width bins over [min, max]. A bins value
// of zero or less selects the Sturges rule, ceil(log2(n)) + 1. The maximum
// value lands in the last bin. Empty input yields an empty result.
func Histogram(vals []float64, bins int) HistogramResult {
	n := len(vals)
	if n == 0 {
		return HistogramResult{}
	}
	if bins <= 0 {
		bins = int(math.Ceil(math.Log2(float64(n)))) + 1
		if bins < 1 {
			bins = 1
		}
	}

	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	// Constant columns collapse into a single bin.
	if lo == hi {
		return HistogramResult{Edges: []float64{lo, hi}, Counts: []int{n}}
	}

	width := (hi - lo) / float64(bins)
	counts := make([]int, bins)
	for _, v := range vals {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	edges := make([]float64, bins+1)
	for i := 0; i <= bins; i++ {
		edges[i] = lo + float64(i)*width
	}
	edges[bins] = hi

	return HistogramResult{Edges: edges, Counts: counts}
}
