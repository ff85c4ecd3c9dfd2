package dataset

import (
	"fmt"
	"math"
	"strconv"

	"github.com/plotforge/plotforge/internal/profile"
)

// NumericColumn is a materialized numeric vector. Valid is false where the
// stored cell did not parse as a finite float, so downstream math can skip
// those positions instead of propagating NaN.
type NumericColumn struct {
	Values []float64
	Valid  []bool
}

// ValidCount returns the number of parseable entries.
func (c *NumericColumn) ValidCount() int {
	n := 0
	for _, ok := range c.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Compact returns only the valid values, in row order.
func (c *NumericColumn) Compact() []float64 {
	out := make([]float64, 0, len(c.Values))
	for i, v := range c.Values {
		if c.Valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// Numeric materializes a column as float64 values with a validity mask.
// Cleaned numeric columns parse completely, but the mask keeps the kernels
// safe when a snapshot predates a profiling change.
func Numeric(table *profile.Table, name string) (*NumericColumn, error) {
	idx := table.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("dataset: no column %q in snapshot", name)
	}

	col := &NumericColumn{
		Values: make([]float64, len(table.Rows)),
		Valid:  make([]bool, len(table.Rows)),
	}
	for i, row := range table.Rows {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		col.Values[i] = v
		col.Valid[i] = true
	}
	return col, nil
}

// Strings materializes a column as its raw cell values.
func Strings(table *profile.Table, name string) ([]string, error) {
	idx := table.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("dataset: no column %q in snapshot", name)
	}

	out := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		out[i] = row[idx]
	}
	return out, nil
}
