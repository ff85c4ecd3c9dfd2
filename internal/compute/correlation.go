package compute

import (
	"fmt"
	"math"

	"github.com/plotforge/plotforge/internal/dataset"
)

// CorrelationMatrix holds a symmetric pairwise Pearson matrix. Cells with
// fewer than two complete observations, or where either side has zero
// variance, are NaN; the renderer serializes those as null.
type CorrelationMatrix struct {
	Columns []string
	Values  [][]float64
}

// Correlation computes the pairwise Pearson correlation over the given
// numeric columns. Each pair uses only the rows where both columns are
// valid, so a stray unparseable cell drops single observations instead of
// whole columns.
func Correlation(names []string, cols []*dataset.NumericColumn) (*CorrelationMatrix, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("compute: correlation over %d names but %d columns", len(names), len(cols))
	}
	for i := 1; i < len(cols); i++ {
		if len(cols[i].Values) != len(cols[0].Values) {
			return nil, fmt.Errorf("compute: correlation columns differ in length: %d vs %d", len(cols[i].Values), len(cols[0].Values))
		}
	}

	m := &CorrelationMatrix{
		Columns: append([]string(nil), names...),
		Values:  make([][]float64, len(cols)),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, len(cols))
	}

	for i := range cols {
		for j := i; j < len(cols); j++ {
			r := pearson(cols[i], cols[j])
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m, nil
}

// pearson computes the correlation over pairwise-complete rows.
func pearson(a, b *dataset.NumericColumn) float64 {
	var n int
	var sumA, sumB float64
	for i := range a.Values {
		if a.Valid[i] && b.Valid[i] {
			n++
			sumA += a.Values[i]
			sumB += b.Values[i]
		}
	}
	if n < 2 {
		return math.NaN()
	}

	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var cov, varA, varB float64
	for i := range a.Values {
		if !a.Valid[i] || !b.Valid[i] {
			continue
		}
		da := a.Values[i] - meanA
		db := b.Values[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varA*varB)
}
