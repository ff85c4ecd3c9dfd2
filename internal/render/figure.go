package render

import "github.com/plotforge/plotforge/internal/charts"

// Plotly figure document model. Only the fields the builders emit are
// declared; the frontend hands the document to Plotly unchanged.

// Chart color palette, shared with the frontend.
const (
	colorPrimary   = "#3b82f6"
	colorSecondary = "#8b5cf6"
	colorSuccess   = "#10b981"
	colorWarning   = "#f59e0b"
	colorDanger    = "#ef4444"

	darkBackground = "#111827"
	darkFont       = "#e5e7eb"
)

// Figure is a complete Plotly figure document.
type Figure struct {
	Data   []interface{} `json:"data"`
	Layout *Layout       `json:"layout"`
}

// Layout holds figure-level presentation settings.
type Layout struct {
	Title      Title  `json:"title"`
	ShowLegend bool   `json:"showlegend"`
	HoverMode  string `json:"hovermode"`
	PlotBG     string `json:"plot_bgcolor"`
	PaperBG    string `json:"paper_bgcolor"`
	Font       *Font  `json:"font,omitempty"`
	BarMode    string `json:"barmode,omitempty"`
	XAxis      *Axis  `json:"xaxis,omitempty"`
	YAxis      *Axis  `json:"yaxis,omitempty"`
}

// Title is a figure title with its font settings.
type Title struct {
	Text string `json:"text"`
	Font Font   `json:"font"`
}

// Font holds text styling.
type Font struct {
	Size  int    `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// Axis holds per-axis presentation settings.
type Axis struct {
	Title *AxisTitle `json:"title,omitempty"`
}

// AxisTitle is an axis label.
type AxisTitle struct {
	Text string `json:"text"`
}

// Marker holds point and bar styling.
type Marker struct {
	Color   string  `json:"color,omitempty"`
	Size    int     `json:"size,omitempty"`
	Opacity float64 `json:"opacity,omitempty"`
}

// LineStyle holds line styling.
type LineStyle struct {
	Color string `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
}

// ScatterTrace renders point and line series. X is interface-typed so the
// same trace carries numeric, categorical, and datetime axes.
type ScatterTrace struct {
	Type   string        `json:"type"`
	Mode   string        `json:"mode"`
	Name   string        `json:"name,omitempty"`
	X      []interface{} `json:"x"`
	Y      []float64     `json:"y"`
	Marker *Marker       `json:"marker,omitempty"`
	Line   *LineStyle    `json:"line,omitempty"`
}

// BarTrace renders vertical and horizontal bar series.
type BarTrace struct {
	Type        string        `json:"type"`
	Name        string        `json:"name,omitempty"`
	X           []interface{} `json:"x"`
	Y           []interface{} `json:"y"`
	Orientation string        `json:"orientation,omitempty"`
	Width       float64       `json:"width,omitempty"`
	Opacity     float64       `json:"opacity,omitempty"`
	Marker      *Marker       `json:"marker,omitempty"`
}

// BoxTrace renders one box per entry using precomputed statistics, so the
// figure stays small no matter how many rows fed the box.
type BoxTrace struct {
	Type       string        `json:"type"`
	Name       string        `json:"name,omitempty"`
	X          []interface{} `json:"x,omitempty"`
	Q1         []float64     `json:"q1"`
	Median     []float64     `json:"median"`
	Q3         []float64     `json:"q3"`
	LowerFence []float64     `json:"lowerfence"`
	UpperFence []float64     `json:"upperfence"`
	Marker     *Marker       `json:"marker,omitempty"`
}

// HeatmapTrace renders the correlation matrix. Nil cells serialize as null
// where the correlation is undefined.
type HeatmapTrace struct {
	Type         string       `json:"type"`
	Z            [][]*float64 `json:"z"`
	X            []string     `json:"x"`
	Y            []string     `json:"y"`
	ColorScale   string       `json:"colorscale"`
	ReverseScale bool         `json:"reversescale"`
	ZMin         float64      `json:"zmin"`
	ZMax         float64      `json:"zmax"`
}

// SplomTrace renders the pairplot scatter matrix.
type SplomTrace struct {
	Type       string           `json:"type"`
	Dimensions []SplomDimension `json:"dimensions"`
	Marker     *Marker          `json:"marker,omitempty"`
}

// SplomDimension is one column of the scatter matrix.
type SplomDimension struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// newLayout builds the shared layout used by every chart: titled, legend
// on, closest-point hover, themed backgrounds.
func newLayout(title string, theme charts.Theme) *Layout {
	l := &Layout{
		Title:      Title{Text: title, Font: Font{Size: 16}},
		ShowLegend: true,
		HoverMode:  "closest",
		PlotBG:     "white",
		PaperBG:    "white",
	}
	if theme == charts.ThemeDark {
		l.PlotBG = darkBackground
		l.PaperBG = darkBackground
		l.Font = &Font{Color: darkFont}
	}
	return l
}

// axisTitles labels both axes, skipping empty labels.
func (l *Layout) axisTitles(x, y string) *Layout {
	if x != "" {
		l.XAxis = &Axis{Title: &AxisTitle{Text: x}}
	}
	if y != "" {
		l.YAxis = &Axis{Title: &AxisTitle{Text: y}}
	}
	return l
}
