package render

import (
	"fmt"
	"math"
	"sort"

	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/compute"
	"github.com/plotforge/plotforge/internal/dataset"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/pkg/types"
)

// numericColumns materializes every numeric column in declared order.
func numericColumns(table *profile.Table) ([]string, []*dataset.NumericColumn, error) {
	var names []string
	var cols []*dataset.NumericColumn
	for _, c := range table.Columns {
		if c.Kind != types.KindNumeric {
			continue
		}
		col, err := dataset.Numeric(table, c.Name)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, c.Name)
		cols = append(cols, col)
	}
	return names, cols, nil
}

// correlationFigure draws the pairwise Pearson matrix as a heatmap.
// Undefined cells come through as nulls, which Plotly leaves blank.
func (r *Renderer) correlationFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	names, cols, err := numericColumns(table)
	if err != nil {
		return nil, err
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("render: correlation needs two numeric columns: %w", ErrNoData)
	}

	m, err := compute.Correlation(names, cols)
	if err != nil {
		return nil, err
	}

	z := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		z[i] = make([]*float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			val := v
			z[i][j] = &val
		}
	}

	trace := &HeatmapTrace{
		Type:         "heatmap",
		Z:            z,
		X:            m.Columns,
		Y:            m.Columns,
		ColorScale:   "RdBu",
		ReverseScale: true,
		ZMin:         -1,
		ZMax:         1,
	}
	layout := newLayout(spec.Title(), spec.Theme)
	return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
}

// pairplotFigure draws a scatter matrix over the first numeric columns,
// capped for readability. Rows with any unparseable cell across the
// selected columns are dropped so every panel stays aligned.
func (r *Renderer) pairplotFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	names, cols, err := numericColumns(table)
	if err != nil {
		return nil, err
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("render: pairplot needs two numeric columns: %w", ErrNoData)
	}
	if len(names) > r.opts.PairplotColumns {
		names = names[:r.opts.PairplotColumns]
		cols = cols[:r.opts.PairplotColumns]
	}

	rows := len(cols[0].Values)
	keep := make([]bool, rows)
	for i := 0; i < rows; i++ {
		keep[i] = true
		for _, col := range cols {
			if !col.Valid[i] {
				keep[i] = false
				break
			}
		}
	}

	dims := make([]SplomDimension, len(names))
	for ci, col := range cols {
		values := make([]float64, 0, rows)
		for i := 0; i < rows; i++ {
			if keep[i] {
				values = append(values, col.Values[i])
			}
		}
		dims[ci] = SplomDimension{Label: names[ci], Values: values}
	}

	trace := &SplomTrace{
		Type:       "splom",
		Dimensions: dims,
		Marker:     &Marker{Color: colorPrimary, Size: 4},
	}
	layout := newLayout(spec.Title(), spec.Theme)
	return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
}

// missingFigure draws a horizontal bar of per-column missing counts,
// largest first, from the tallies observed at ingestion. Datasets with
// nothing missing skip the chart entirely.
func (r *Renderer) missingFigure(spec charts.ChartSpec, prof *profile.DatasetProfile) (*Figure, error) {
	if prof == nil {
		return nil, fmt.Errorf("render: missing-values chart needs the dataset profile")
	}

	counts := compute.MissingCounts(prof)
	filtered := counts[:0]
	for _, c := range counts {
		if c.Missing > 0 {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("render: no missing values: %w", ErrNoData)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Missing > filtered[j].Missing
	})

	xs := make([]interface{}, len(filtered))
	ys := make([]interface{}, len(filtered))
	for i, c := range filtered {
		xs[i] = c.Missing
		ys[i] = c.Column
	}

	trace := &BarTrace{
		Type:        "bar",
		Name:        "Missing",
		X:           xs,
		Y:           ys,
		Orientation: "h",
		Marker:      &Marker{Color: colorDanger},
	}
	layout := newLayout(spec.Title(), spec.Theme).axisTitles("Count", "Column")
	return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
}
