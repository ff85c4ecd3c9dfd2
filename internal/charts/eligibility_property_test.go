package charts

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/plotforge/plotforge/pkg/types"
)

// TestProperty_EligibilityResolver checks the resolver's contract: the
// eligible list is a pure function of the axis kinds, symmetric across
// axis order, and never contains a dataset-level chart type.
func TestProperty_EligibilityResolver(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	kindGen := gen.OneConstOf(
		types.KindNumeric,
		types.KindCategorical,
		types.KindDatetime,
		types.KindText,
		types.KindBoolean,
	)

	properties.Property("same kinds always resolve to the same list", prop.ForAll(
		func(x, y types.ColumnKind) bool {
			first := Resolve(x, y)
			second := Resolve(x, y)
			return reflect.DeepEqual(first, second)
		},
		kindGen,
		kindGen,
	))

	properties.Property("pair resolution is symmetric in axis order", prop.ForAll(
		func(x, y types.ColumnKind) bool {
			return reflect.DeepEqual(Resolve(x, y), Resolve(y, x))
		},
		kindGen,
		kindGen,
	))

	properties.Property("resolver never returns a dataset-level type", prop.ForAll(
		func(x, y types.ColumnKind) bool {
			for _, ct := range Resolve(x, y) {
				if ct.DatasetLevel() {
					return false
				}
			}
			for _, ct := range ResolveSingle(x) {
				if ct.DatasetLevel() {
					return false
				}
			}
			return true
		},
		kindGen,
		kindGen,
	))

	properties.Property("resolved lists contain no repeated type", prop.ForAll(
		func(x, y types.ColumnKind) bool {
			seen := make(map[ChartType]struct{})
			for _, ct := range Resolve(x, y) {
				if _, ok := seen[ct]; ok {
					return false
				}
				seen[ct] = struct{}{}
			}
			return true
		},
		kindGen,
		kindGen,
	))

	properties.TestingRun(t)
}
