package compute

import (
	"errors"
	"math"
	"testing"
)

func TestHistogram_ExplicitBins(t *testing.T) {
	vals := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 10}
	h := Histogram(vals, 5)

	if len(h.Counts) != 5 || len(h.Edges) != 6 {
		t.Fatalf("expected 5 bins, got %d counts / %d edges", len(h.Counts), len(h.Edges))
	}
	if h.Edges[0] != 0 || h.Edges[5] != 10 {
		t.Errorf("edge range wrong: %v", h.Edges)
	}

	total := 0
	for _, c := range h.Counts {
		total += c
	}
	if total != len(vals) {
		t.Errorf("counts sum to %d, want %d", total, len(vals))
	}
	// The maximum value falls into the last bin, not past it
	if h.Counts[4] == 0 {
		t.Errorf("last bin should hold the max: %v", h.Counts)
	}
}

func TestHistogram_SturgesDefault(t *testing.T) {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = float64(i)
	}
	h := Histogram(vals, 0)

	// ceil(log2(100)) + 1 = 8
	if len(h.Counts) != 8 {
		t.Errorf("expected 8 Sturges bins for n=100, got %d", len(h.Counts))
	}
}

func TestHistogram_ConstantColumn(t *testing.T) {
	h := Histogram([]float64{5, 5, 5}, 0)
	if len(h.Counts) != 1 || h.Counts[0] != 3 {
		t.Errorf("expected single bin of 3, got %+v", h)
	}
	if h.Edges[0] != 5 || h.Edges[1] != 5 {
		t.Errorf("expected degenerate edges at 5, got %v", h.Edges)
	}
}

func TestHistogram_Empty(t *testing.T) {
	h := Histogram(nil, 0)
	if len(h.Counts) != 0 || len(h.Edges) != 0 {
		t.Errorf("expected empty result, got %+v", h)
	}
}

func TestBoxStats(t *testing.T) {
	r, err := BoxStats([]float64{1, 2, 3, 4, 100})
	if err != nil {
		t.Fatal(err)
	}

	if r.Min != 1 || r.Max != 100 {
		t.Errorf("min/max wrong: %+v", r)
	}
	if r.Q1 != 2 || r.Median != 3 || r.Q3 != 4 {
		t.Errorf("quartiles wrong: %+v", r)
	}
	// Fences are [-1, 7]: 100 is the only outlier
	if len(r.Outliers) != 1 || r.Outliers[0] != 100 {
		t.Errorf("outliers wrong: %v", r.Outliers)
	}
	if r.WhiskerLow != 1 || r.WhiskerHigh != 4 {
		t.Errorf("whiskers wrong: low=%g high=%g", r.WhiskerLow, r.WhiskerHigh)
	}
}

func TestBoxStats_Constant(t *testing.T) {
	r, err := BoxStats([]float64{7, 7, 7})
	if err != nil {
		t.Fatal(err)
	}
	if r.Min != 7 || r.Max != 7 || r.Median != 7 {
		t.Errorf("constant stats wrong: %+v", r)
	}
	if len(r.Outliers) != 0 {
		t.Errorf("constant column has no outliers: %v", r.Outliers)
	}
	if r.WhiskerLow != 7 || r.WhiskerHigh != 7 {
		t.Errorf("whiskers wrong: %+v", r)
	}
}

func TestBoxStats_Empty(t *testing.T) {
	if _, err := BoxStats(nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestKDE(t *testing.T) {
	vals := []float64{1, 2, 2, 3, 3, 3, 4, 4, 5}
	res := KDE(vals, 50)

	if len(res.X) != 50 || len(res.Y) != 50 {
		t.Fatalf("expected 50 grid points, got %d/%d", len(res.X), len(res.Y))
	}
	for i := 1; i < len(res.X); i++ {
		if res.X[i] <= res.X[i-1] {
			t.Fatalf("grid not increasing at %d", i)
		}
	}
	for i, y := range res.Y {
		if y < 0 || math.IsNaN(y) {
			t.Fatalf("density invalid at %d: %g", i, y)
		}
	}

	// The grid covers the data with bandwidth margin on both sides
	if res.X[0] >= 1 || res.X[len(res.X)-1] <= 5 {
		t.Errorf("grid does not cover data: [%g, %g]", res.X[0], res.X[len(res.X)-1])
	}

	// Density should peak near the heaviest value, 3
	peak := 0
	for i, y := range res.Y {
		if y > res.Y[peak] {
			peak = i
		}
	}
	if math.Abs(res.X[peak]-3) > 1 {
		t.Errorf("density peak at %g, expected near 3", res.X[peak])
	}
}

func TestKDE_Degenerate(t *testing.T) {
	if res := KDE([]float64{1}, 10); len(res.X) != 0 {
		t.Errorf("expected empty result for single value, got %d points", len(res.X))
	}
	if res := KDE([]float64{2, 2, 2}, 10); len(res.X) != 0 {
		t.Errorf("expected empty result for constant column, got %d points", len(res.X))
	}
	if res := KDE(nil, 10); len(res.X) != 0 {
		t.Errorf("expected empty result for no data, got %d points", len(res.X))
	}
}
