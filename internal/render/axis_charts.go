package render

import (
	"fmt"
	"sort"
	"time"

	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/compute"
	"github.com/plotforge/plotforge/internal/dataset"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/pkg/types"
)

// requireColumn resolves a column's kind or fails with the column name.
func requireColumn(table *profile.Table, name string) (types.ColumnKind, error) {
	kind, ok := table.Kind(name)
	if !ok {
		return "", fmt.Errorf("render: unknown column %q", name)
	}
	return kind, nil
}

// catValAxes splits an axis pair into its categorical and numeric sides,
// regardless of which was selected as x.
func catValAxes(table *profile.Table, x, y string) (cats []string, vals *dataset.NumericColumn, catName, valName string, err error) {
	xKind, err := requireColumn(table, x)
	if err != nil {
		return nil, nil, "", "", err
	}
	yKind, err := requireColumn(table, y)
	if err != nil {
		return nil, nil, "", "", err
	}

	switch {
	case xKind == types.KindNumeric && yKind.Discrete():
		catName, valName = y, x
	case yKind == types.KindNumeric && xKind.Discrete():
		catName, valName = x, y
	default:
		return nil, nil, "", "", fmt.Errorf("render: %q and %q do not form a categorical/numeric pair", x, y)
	}

	cats, err = dataset.Strings(table, catName)
	if err != nil {
		return nil, nil, "", "", err
	}
	vals, err = dataset.Numeric(table, valName)
	if err != nil {
		return nil, nil, "", "", err
	}
	return cats, vals, catName, valName, nil
}

func floatsToIface(vals []float64) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func stringsToIface(vals []string) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// scatterFigure plots raw points for a numeric pair, or a numeric column
// against a datetime axis.
func (r *Renderer) scatterFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	xKind, err := requireColumn(table, spec.X)
	if err != nil {
		return nil, err
	}
	yKind, err := requireColumn(table, spec.Y)
	if err != nil {
		return nil, err
	}

	var xs []interface{}
	var ys []float64

	switch {
	case xKind == types.KindNumeric && yKind == types.KindNumeric:
		xcol, err := dataset.Numeric(table, spec.X)
		if err != nil {
			return nil, err
		}
		ycol, err := dataset.Numeric(table, spec.Y)
		if err != nil {
			return nil, err
		}
		for i := range xcol.Values {
			if xcol.Valid[i] && ycol.Valid[i] {
				xs = append(xs, xcol.Values[i])
				ys = append(ys, ycol.Values[i])
			}
		}

	case xKind == types.KindDatetime && yKind == types.KindNumeric:
		raw, err := dataset.Strings(table, spec.X)
		if err != nil {
			return nil, err
		}
		ycol, err := dataset.Numeric(table, spec.Y)
		if err != nil {
			return nil, err
		}
		for i := range raw {
			if ycol.Valid[i] {
				xs = append(xs, raw[i])
				ys = append(ys, ycol.Values[i])
			}
		}

	case xKind == types.KindNumeric && yKind == types.KindDatetime:
		// Keep the time axis horizontal even when selected as y.
		swapped := spec
		swapped.X, swapped.Y = spec.Y, spec.X
		return r.scatterFigure(swapped, table)

	default:
		return nil, fmt.Errorf("render: %q and %q do not form a scatter pair", spec.X, spec.Y)
	}

	trace := &ScatterTrace{
		Type:   "scatter",
		Mode:   "markers",
		Name:   spec.Y,
		X:      xs,
		Y:      ys,
		Marker: &Marker{Color: colorPrimary},
	}
	layout := newLayout(spec.Title(), spec.Theme).axisTitles(spec.X, spec.Y)
	return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
}

// lineFigure plots a numeric column over an ordered axis. Datetime axes
// are sorted chronologically; numeric pairs keep row order the way the
// upload arrived.
func (r *Renderer) lineFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	if spec.Y == "" {
		return r.countOverTimeFigure(spec, table)
	}

	xKind, err := requireColumn(table, spec.X)
	if err != nil {
		return nil, err
	}
	yKind, err := requireColumn(table, spec.Y)
	if err != nil {
		return nil, err
	}

	var xs []interface{}
	var ys []float64

	switch {
	case xKind == types.KindDatetime && yKind == types.KindNumeric:
		xs, ys, err = chronologicalSeries(table, spec.X, spec.Y)
		if err != nil {
			return nil, err
		}

	case xKind == types.KindNumeric && yKind == types.KindDatetime:
		swapped := spec
		swapped.X, swapped.Y = spec.Y, spec.X
		return r.lineFigure(swapped, table)

	case xKind == types.KindNumeric && yKind == types.KindNumeric:
		xcol, err := dataset.Numeric(table, spec.X)
		if err != nil {
			return nil, err
		}
		ycol, err := dataset.Numeric(table, spec.Y)
		if err != nil {
			return nil, err
		}
		for i := range xcol.Values {
			if xcol.Valid[i] && ycol.Valid[i] {
				xs = append(xs, xcol.Values[i])
				ys = append(ys, ycol.Values[i])
			}
		}

	default:
		return nil, fmt.Errorf("render: %q and %q do not form a line pair", spec.X, spec.Y)
	}

	trace := &ScatterTrace{
		Type: "scatter",
		Mode: "lines",
		Name: spec.Y,
		X:    xs,
		Y:    ys,
		Line: &LineStyle{Color: colorSecondary},
	}
	layout := newLayout(spec.Title(), spec.Theme).axisTitles(spec.X, spec.Y)
	return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
}

// chronologicalSeries pairs a datetime column with a numeric one, ordered
// by parsed time.
func chronologicalSeries(table *profile.Table, timeCol, valCol string) ([]interface{}, []float64, error) {
	raw, err := dataset.Strings(table, timeCol)
	if err != nil {
		return nil, nil, err
	}
	vals, err := dataset.Numeric(table, valCol)
	if err != nil {
		return nil, nil, err
	}

	type point struct {
		raw string
		t   time.Time
		v   float64
	}
	points := make([]point, 0, len(raw))
	for i := range raw {
		if !vals.Valid[i] {
			continue
		}
		t, _ := profile.ParseDatetime(raw[i])
		points = append(points, point{raw: raw[i], t: t, v: vals.Values[i]})
	}
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].t.Equal(points[j].t) {
			return points[i].t.Before(points[j].t)
		}
		return points[i].raw < points[j].raw
	})

	xs := make([]interface{}, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.raw
		ys[i] = p.v
	}
	return xs, ys, nil
}

// countOverTimeFigure draws row counts per distinct value of a single
// ordered column.
func (r *Renderer) countOverTimeFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	if _, err := requireColumn(table, spec.X); err != nil {
		return nil, err
	}
	raw, err := dataset.Strings(table, spec.X)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, v := range raw {
		counts[v]++
	}

	order := make([]string, 0, len(counts))
	for v := range counts {
		order = append(order, v)
	}
	sort.Slice(order, func(i, j int) bool {
		ti, iok := profile.ParseDatetime(order[i])
		tj, jok := profile.ParseDatetime(order[j])
		if iok && jok && !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return order[i] < order[j]
	})

	xs := make([]interface{}, len(order))
	ys := make([]float64, len(order))
	for i, v := range order {
		xs[i] = v
		ys[i] = float64(counts[v])
	}

	trace := &ScatterTrace{
		Type: "scatter",
		Mode: "lines",
		Name: "Count",
		X:    xs,
		Y:    ys,
		Line: &LineStyle{Color: colorSecondary},
	}
	layout := newLayout(spec.Title(), spec.Theme).axisTitles(spec.X, "Count")
	return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
}

// barFigure draws value counts for a single categorical column, or the
// per-category mean when paired with a numeric column. Category axes are
// capped with the tail folded into one bar.
func (r *Renderer) barFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	if spec.Y == "" {
		if _, err := requireColumn(table, spec.X); err != nil {
			return nil, err
		}
		cats, err := dataset.Strings(table, spec.X)
		if err != nil {
			return nil, err
		}
		stats, err := compute.GroupStats(cats, nil, r.opts.TopCategories)
		if err != nil {
			return nil, err
		}

		xs := make([]interface{}, len(stats))
		ys := make([]interface{}, len(stats))
		for i, s := range stats {
			xs[i] = s.Category
			ys[i] = s.Count
		}
		trace := &BarTrace{Type: "bar", Name: spec.X, X: xs, Y: ys, Marker: &Marker{Color: colorSuccess}}
		layout := newLayout(spec.Title(), spec.Theme).axisTitles(spec.X, "Count")
		return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
	}

	cats, vals, catName, valName, err := catValAxes(table, spec.X, spec.Y)
	if err != nil {
		return nil, err
	}
	stats, err := compute.GroupStats(cats, vals, r.opts.TopCategories)
	if err != nil {
		return nil, err
	}

	xs := make([]interface{}, len(stats))
	ys := make([]interface{}, len(stats))
	for i, s := range stats {
		xs[i] = s.Category
		ys[i] = s.Mean
	}
	trace := &BarTrace{Type: "bar", Name: valName, X: xs, Y: ys, Marker: &Marker{Color: colorSuccess}}
	layout := newLayout(spec.Title(), spec.Theme).axisTitles(catName, "Mean of "+valName)
	return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
}

// groupedBarFigure crosses two categorical columns: one bar trace per
// secondary category, grouped along the primary axis.
func (r *Renderer) groupedBarFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	for _, name := range []string{spec.X, spec.Y} {
		kind, err := requireColumn(table, name)
		if err != nil {
			return nil, err
		}
		if !kind.Discrete() {
			return nil, fmt.Errorf("render: grouped bars need categorical axes, %q is %s", name, kind)
		}
	}

	primary, err := dataset.Strings(table, spec.X)
	if err != nil {
		return nil, err
	}
	secondary, err := dataset.Strings(table, spec.Y)
	if err != nil {
		return nil, err
	}

	crossed, err := compute.CrossGroupStats(primary, secondary, nil, r.opts.TopCategories)
	if err != nil {
		return nil, err
	}

	palette := []string{colorPrimary, colorSecondary, colorSuccess, colorWarning, colorDanger}
	data := make([]interface{}, 0, len(crossed.Secondary))
	xs := stringsToIface(crossed.Primary)
	for si, sec := range crossed.Secondary {
		ys := make([]interface{}, len(crossed.Primary))
		for pi := range crossed.Primary {
			ys[pi] = crossed.Cells[si][pi].Count
		}
		data = append(data, &BarTrace{
			Type:   "bar",
			Name:   sec,
			X:      xs,
			Y:      ys,
			Marker: &Marker{Color: palette[si%len(palette)]},
		})
	}

	layout := newLayout(spec.Title(), spec.Theme).axisTitles(spec.X, "Count")
	layout.BarMode = "group"
	return &Figure{Data: data, Layout: layout}, nil
}

// boxFigure draws one box for a single numeric column, or one box per
// category when paired with a categorical column. Boxes carry precomputed
// statistics so row count never inflates the figure.
func (r *Renderer) boxFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	if spec.Y == "" {
		if _, err := requireColumn(table, spec.X); err != nil {
			return nil, err
		}
		col, err := dataset.Numeric(table, spec.X)
		if err != nil {
			return nil, err
		}
		stats, err := compute.BoxStats(col.Compact())
		if err != nil {
			return nil, fmt.Errorf("render: box of %q: %w", spec.X, err)
		}
		return boxFromStats(spec, []string{spec.X}, []compute.BoxResult{stats}, spec.X, ""), nil
	}

	cats, vals, catName, valName, err := catValAxes(table, spec.X, spec.Y)
	if err != nil {
		return nil, err
	}

	// Category order follows the bar chart: count desc, name asc, capped.
	// The folded tail entry is dropped since a box over mixed categories
	// reads as noise.
	order, err := compute.GroupStats(cats, nil, r.opts.TopCategories)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]float64)
	for i, cat := range cats {
		if vals.Valid[i] {
			grouped[cat] = append(grouped[cat], vals.Values[i])
		}
	}

	var names []string
	var results []compute.BoxResult
	for _, g := range order {
		if g.Category == compute.OtherCategory {
			continue
		}
		members, ok := grouped[g.Category]
		if !ok {
			continue
		}
		stats, err := compute.BoxStats(members)
		if err != nil {
			continue
		}
		names = append(names, g.Category)
		results = append(results, stats)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("render: box of %q by %q: %w", valName, catName, compute.ErrEmptyInput)
	}
	return boxFromStats(spec, names, results, catName, valName), nil
}

// boxFromStats assembles box traces plus an outlier overlay.
func boxFromStats(spec charts.ChartSpec, names []string, stats []compute.BoxResult, xTitle, yTitle string) *Figure {
	trace := &BoxTrace{
		Type:   "box",
		Name:   yTitle,
		X:      stringsToIface(names),
		Marker: &Marker{Color: colorSecondary},
	}
	if trace.Name == "" {
		trace.Name = xTitle
	}

	var outlierX []interface{}
	var outlierY []float64
	for i, s := range stats {
		trace.Q1 = append(trace.Q1, s.Q1)
		trace.Median = append(trace.Median, s.Median)
		trace.Q3 = append(trace.Q3, s.Q3)
		trace.LowerFence = append(trace.LowerFence, s.WhiskerLow)
		trace.UpperFence = append(trace.UpperFence, s.WhiskerHigh)
		for _, v := range s.Outliers {
			outlierX = append(outlierX, names[i])
			outlierY = append(outlierY, v)
		}
	}

	data := []interface{}{trace}
	if len(outlierY) > 0 {
		data = append(data, &ScatterTrace{
			Type:   "scatter",
			Mode:   "markers",
			Name:   "outliers",
			X:      outlierX,
			Y:      outlierY,
			Marker: &Marker{Color: colorDanger, Size: 4},
		})
	}

	layout := newLayout(spec.Title(), spec.Theme).axisTitles(xTitle, yTitle)
	return &Figure{Data: data, Layout: layout}
}

// histogramFigure bins a numeric column into touching bars.
func (r *Renderer) histogramFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	if _, err := requireColumn(table, spec.X); err != nil {
		return nil, err
	}
	col, err := dataset.Numeric(table, spec.X)
	if err != nil {
		return nil, err
	}

	h := compute.Histogram(col.Compact(), r.opts.HistogramBins)
	if len(h.Counts) == 0 {
		return nil, fmt.Errorf("render: histogram of %q: %w", spec.X, compute.ErrEmptyInput)
	}

	xs, width := binCenters(h)
	ys := make([]interface{}, len(h.Counts))
	for i, c := range h.Counts {
		ys[i] = c
	}

	trace := &BarTrace{
		Type:   "bar",
		Name:   spec.X,
		X:      xs,
		Y:      ys,
		Width:  width,
		Marker: &Marker{Color: colorPrimary},
	}
	layout := newLayout(spec.Title(), spec.Theme).axisTitles(spec.X, "Count")
	return &Figure{Data: []interface{}{trace}, Layout: layout}, nil
}

// distributionFigure overlays a density histogram with a smoothed density
// curve. When the density estimate degenerates the histogram stands alone
// with raw counts.
func (r *Renderer) distributionFigure(spec charts.ChartSpec, table *profile.Table) (*Figure, error) {
	if _, err := requireColumn(table, spec.X); err != nil {
		return nil, err
	}
	col, err := dataset.Numeric(table, spec.X)
	if err != nil {
		return nil, err
	}
	vals := col.Compact()

	h := compute.Histogram(vals, r.opts.HistogramBins)
	if len(h.Counts) == 0 {
		return nil, fmt.Errorf("render: distribution of %q: %w", spec.X, compute.ErrEmptyInput)
	}
	kde := compute.KDE(vals, r.opts.KDEPoints)

	xs, width := binCenters(h)
	useDensity := len(kde.X) > 0 && width > 0

	ys := make([]interface{}, len(h.Counts))
	yTitle := "Count"
	if useDensity {
		norm := float64(len(vals)) * width
		for i, c := range h.Counts {
			ys[i] = float64(c) / norm
		}
		yTitle = "Density"
	} else {
		for i, c := range h.Counts {
			ys[i] = c
		}
	}

	data := []interface{}{&BarTrace{
		Type:    "bar",
		Name:    "Distribution",
		X:       xs,
		Y:       ys,
		Width:   width,
		Opacity: 0.7,
		Marker:  &Marker{Color: colorPrimary},
	}}
	if useDensity {
		data = append(data, &ScatterTrace{
			Type: "scatter",
			Mode: "lines",
			Name: "Density",
			X:    floatsToIface(kde.X),
			Y:    kde.Y,
			Line: &LineStyle{Color: colorSecondary, Width: 2},
		})
	}

	layout := newLayout(spec.Title(), spec.Theme).axisTitles(spec.X, yTitle)
	return &Figure{Data: data, Layout: layout}, nil
}

// binCenters converts histogram edges into bar positions and a bar width.
func binCenters(h compute.HistogramResult) ([]interface{}, float64) {
	xs := make([]interface{}, len(h.Counts))
	for i := range h.Counts {
		xs[i] = (h.Edges[i] + h.Edges[i+1]) / 2
	}
	width := 0.0
	if len(h.Edges) > 1 {
		width = h.Edges[1] - h.Edges[0]
	}
	return xs, width
}
