package compute

import (
	"errors"
	"math"
)

// ErrEmptyInput is returned by kernels that cannot produce a meaningful
// result without data.
var ErrEmptyInput = errors.New("compute: empty input")

// BoxResult holds box-plot statistics. WhiskerLow and WhiskerHigh are the
// most extreme observations inside the 1.5 IQR fences; Outliers are the
// points beyond them.
type BoxResult struct {
	Min         float64
	WhiskerLow  float64
	Q1          float64
	Median      float64
	Q3          float64
	WhiskerHigh float64
	Max         float64
	Outliers    []float64
}

// BoxStats computes box-plot statistics over vals.
func BoxStats(vals []float64) (BoxResult, error) {
	if len(vals) == 0 {
		return BoxResult{}, ErrEmptyInput
	}

	sorted := sortedCopy(vals)
	r := BoxResult{
		Min:    sorted[0],
		Q1:     quantile(sorted, 0.25),
		Median: quantile(sorted, 0.5),
		Q3:     quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}

	iqr := r.Q3 - r.Q1
	loFence := r.Q1 - 1.5*iqr
	hiFence := r.Q3 + 1.5*iqr

	r.WhiskerLow = r.Max
	r.WhiskerHigh = r.Min
	for _, v := range sorted {
		if v < loFence || v > hiFence {
			r.Outliers = append(r.Outliers, v)
			continue
		}
		if v < r.WhiskerLow {
			r.WhiskerLow = v
		}
		if v > r.WhiskerHigh {
			r.WhiskerHigh = v
		}
	}

	return r, nil
}

// KDEResult holds a sampled density curve.
type KDEResult struct {
	X []float64
	Y []float64
}

// KDE estimates the density of vals with a Gaussian kernel and Silverman
// bandwidth, sampled at the given number of grid points (default 200). The
// result is empty when fewer than two values are present or the data has no
// spread, in which case callers fall back to the histogram alone.
func KDE(vals []float64, points int) KDEResult {
	n := len(vals)
	if n < 2 {
		return KDEResult{}
	}
	if points <= 0 {
		points = 200
	}

	sorted := sortedCopy(vals)
	std := sampleStd(sorted)
	iqr := quantile(sorted, 0.75) - quantile(sorted, 0.25)

	h := std
	if scaled := iqr / 1.34; scaled > 0 && scaled < h {
		h = scaled
	}
	h *= 0.9 * math.Pow(float64(n), -0.2)
	if h <= 0 {
		return KDEResult{}
	}

	lo := sorted[0] - 3*h
	hi := sorted[n-1] + 3*h
	step := (hi - lo) / float64(points-1)

	norm := 1.0 / (float64(n) * h * math.Sqrt(2*math.Pi))
	res := KDEResult{X: make([]float64, points), Y: make([]float64, points)}
	for i := 0; i < points; i++ {
		x := lo + float64(i)*step
		sum := 0.0
		for _, v := range sorted {
			u := (x - v) / h
			sum += math.Exp(-0.5 * u * u)
		}
		res.X[i] = x
		res.Y[i] = sum * norm
	}
	return res
}
