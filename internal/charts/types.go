// Package charts defines the chart vocabulary and the pure decision logic
// behind chart generation: which chart types an axis pair is eligible for,
// and which requested charts a session's library already holds.
package charts

import (
	"strings"

	"github.com/plotforge/plotforge/pkg/types"
)

// ChartType identifies a kind of chart the renderer can produce.
type ChartType string

const (
	TypeScatter      ChartType = "scatter"
	TypeLine         ChartType = "line"
	TypeBar          ChartType = "bar_chart"
	TypeGroupedBar   ChartType = "grouped_bar"
	TypeBox          ChartType = "box"
	TypeHistogram    ChartType = "histogram"
	TypeDistribution ChartType = "distribution"
	TypeCorrelation  ChartType = "correlation"
	TypePairplot     ChartType = "pairplot"
	TypeMissing      ChartType = "missing"
)

// AllSentinel expands to every eligible chart type for the selected axes.
const AllSentinel = "all"

// AllChartTypes lists every chart type, axis-pair and dataset-level alike.
var AllChartTypes = []ChartType{
	TypeScatter, TypeLine, TypeBar, TypeGroupedBar, TypeBox,
	TypeHistogram, TypeDistribution, TypeCorrelation, TypePairplot, TypeMissing,
}

// Theme selects the figure color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether the chart type is recognized.
func (c ChartType) Valid() bool {
	switch c {
	case TypeScatter, TypeLine, TypeBar, TypeGroupedBar, TypeBox,
		TypeHistogram, TypeDistribution, TypeCorrelation, TypePairplot, TypeMissing:
		return true
	}
	return false
}

// DatasetLevel reports whether the chart type describes the whole dataset
// rather than an axis pair. Dataset-level charts are produced once at
// ingestion and cannot be requested on demand.
func (c ChartType) DatasetLevel() bool {
	switch c {
	case TypeCorrelation, TypePairplot, TypeMissing:
		return true
	}
	return false
}

// SingleAxis reports whether the chart type charts one column alone.
func (c ChartType) SingleAxis() bool {
	switch c {
	case TypeHistogram, TypeBox, TypeDistribution, TypeBar, TypeLine:
		return true
	}
	return false
}

// Title returns the display title for the chart type.
func (c ChartType) Title() string {
	switch c {
	case TypeScatter:
		return "Scatter Plot"
	case TypeLine:
		return "Line Chart"
	case TypeBar:
		return "Bar Chart"
	case TypeGroupedBar:
		return "Grouped Bar Chart"
	case TypeBox:
		return "Box Plot"
	case TypeHistogram:
		return "Histogram"
	case TypeDistribution:
		return "Distribution Plot"
	case TypeCorrelation:
		return "Correlation Heatmap"
	case TypePairplot:
		return "Pair Plot"
	case TypeMissing:
		return "Missing Values"
	default:
		return string(c)
	}
}

// Description returns a one-line description shown in chart pickers.
func (c ChartType) Description() string {
	switch c {
	case TypeScatter:
		return "Shows the relationship between two numeric columns"
	case TypeLine:
		return "Shows how values change across an ordered axis"
	case TypeBar:
		return "Compares a numeric value across categories"
	case TypeGroupedBar:
		return "Compares category counts across a second category"
	case TypeBox:
		return "Shows the spread and outliers of a numeric column"
	case TypeHistogram:
		return "Shows the frequency distribution of a numeric column"
	case TypeDistribution:
		return "Shows a smoothed density estimate of a numeric column"
	case TypeCorrelation:
		return "Shows pairwise correlation between all numeric columns"
	case TypePairplot:
		return "Shows scatter plots for every numeric column pair"
	case TypeMissing:
		return "Shows missing value counts per column"
	default:
		return ""
	}
}

// ParseChartType parses a chart type name, case-insensitively.
// Returns false if the name is not a recognized chart type.
func ParseChartType(s string) (ChartType, bool) {
	c := ChartType(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", false
	}
	return c, true
}

// ParseTheme parses a theme name, case-insensitively. An empty name
// parses as the zero Theme with ok=true so callers can apply a default.
func ParseTheme(s string) (Theme, bool) {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "":
		return "", true
	case ThemeLight, ThemeDark:
		return t, true
	}
	return "", false
}

// effectiveKind folds column kinds into the three axis classes the
// eligibility table is written in terms of. Text and boolean columns
// pair the way categoricals do.
func effectiveKind(k types.ColumnKind) types.ColumnKind {
	if k.Discrete() {
		return types.KindCategorical
	}
	return k
}
