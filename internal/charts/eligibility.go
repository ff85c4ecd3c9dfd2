package charts

import (
	"github.com/plotforge/plotforge/pkg/types"
)

// Resolve returns the chart types eligible for an (x, y) axis pair, in
// the order they should be generated. The result depends only on the
// column kinds: same kinds, same list, every time.
//
// An empty y kind resolves the x column alone via ResolveSingle.
// Kind pairs outside the table resolve to nil rather than an error;
// the caller reports them as ineligible.
func Resolve(xKind, yKind types.ColumnKind) []ChartType {
	if yKind == "" {
		return ResolveSingle(xKind)
	}

	x := effectiveKind(xKind)
	y := effectiveKind(yKind)

	switch {
	case x == types.KindNumeric && y == types.KindNumeric:
		return []ChartType{TypeScatter, TypeLine}

	case x == types.KindNumeric && y == types.KindCategorical,
		x == types.KindCategorical && y == types.KindNumeric:
		return []ChartType{TypeBar, TypeBox}

	case x == types.KindCategorical && y == types.KindCategorical:
		return []ChartType{TypeGroupedBar}

	case x == types.KindDatetime && y == types.KindNumeric,
		x == types.KindNumeric && y == types.KindDatetime:
		return []ChartType{TypeLine, TypeScatter}

	default:
		return nil
	}
}

// ResolveSingle returns the chart types eligible for a single column.
func ResolveSingle(xKind types.ColumnKind) []ChartType {
	switch effectiveKind(xKind) {
	case types.KindNumeric:
		return []ChartType{TypeHistogram, TypeBox, TypeDistribution}
	case types.KindCategorical:
		return []ChartType{TypeBar}
	case types.KindDatetime:
		return []ChartType{TypeLine}
	default:
		return nil
	}
}

// Eligible reports whether the chart type appears in the eligible list
// for the given axis kinds.
func Eligible(c ChartType, xKind, yKind types.ColumnKind) bool {
	for _, t := range Resolve(xKind, yKind) {
		if t == c {
			return true
		}
	}
	return false
}
