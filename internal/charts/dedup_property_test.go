package charts

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// specFromSeed maps an int seed onto a small spec space so generated
// requests collide with each other and with the existing set often
// enough to exercise both partition buckets.
func specFromSeed(seed int) ChartSpec {
	if seed < 0 {
		seed = -seed
	}
	chartTypes := []ChartType{TypeScatter, TypeLine, TypeBar, TypeBox, TypeHistogram}
	columns := []string{"age", "income", "city", "score"}
	themes := []Theme{ThemeLight, ThemeDark}

	return ChartSpec{
		Type:  chartTypes[seed%len(chartTypes)],
		X:     columns[(seed/5)%len(columns)],
		Y:     columns[(seed/20)%len(columns)],
		Theme: themes[(seed/80)%len(themes)],
	}
}

func specsFromSeeds(seeds []int) []ChartSpec {
	specs := make([]ChartSpec, len(seeds))
	for i, s := range seeds {
		specs[i] = specFromSeed(s)
	}
	return specs
}

// TestProperty_DedupPartition checks the partition laws: the two output
// buckets are disjoint, cover the request exactly once per key, preserve
// request order, and a second pass over the grown library yields nothing
// fresh.
func TestProperty_DedupPartition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	seedsGen := gen.SliceOf(gen.IntRange(0, 320))

	properties.Property("fresh and duplicate key sets are disjoint", prop.ForAll(
		func(reqSeeds, existSeeds []int) bool {
			requested := specsFromSeeds(reqSeeds)
			existing := make(map[string]struct{})
			for _, s := range specsFromSeeds(existSeeds) {
				existing[s.Key()] = struct{}{}
			}

			fresh, duplicate := Partition(requested, existing)

			freshKeys := make(map[string]struct{})
			for _, s := range fresh {
				freshKeys[s.Key()] = struct{}{}
			}
			for _, s := range duplicate {
				if _, ok := freshKeys[s.Key()]; ok {
					return false
				}
			}
			return true
		},
		seedsGen,
		seedsGen,
	))

	properties.Property("every distinct requested key lands in exactly one bucket", prop.ForAll(
		func(reqSeeds, existSeeds []int) bool {
			requested := specsFromSeeds(reqSeeds)
			existing := make(map[string]struct{})
			for _, s := range specsFromSeeds(existSeeds) {
				existing[s.Key()] = struct{}{}
			}

			fresh, duplicate := Partition(requested, existing)

			distinct := make(map[string]struct{})
			for _, s := range requested {
				distinct[s.Key()] = struct{}{}
			}

			if len(fresh)+len(duplicate) != len(distinct) {
				return false
			}
			for _, s := range fresh {
				if _, ok := distinct[s.Key()]; !ok {
					return false
				}
			}
			for _, s := range duplicate {
				if _, ok := distinct[s.Key()]; !ok {
					return false
				}
			}
			return true
		},
		seedsGen,
		seedsGen,
	))

	properties.Property("existing keys never come back fresh", prop.ForAll(
		func(reqSeeds, existSeeds []int) bool {
			requested := specsFromSeeds(reqSeeds)
			existing := make(map[string]struct{})
			for _, s := range specsFromSeeds(existSeeds) {
				existing[s.Key()] = struct{}{}
			}

			fresh, _ := Partition(requested, existing)
			for _, s := range fresh {
				if _, ok := existing[s.Key()]; ok {
					return false
				}
			}
			return true
		},
		seedsGen,
		seedsGen,
	))

	properties.Property("repartition after appending fresh yields nothing fresh", prop.ForAll(
		func(reqSeeds, existSeeds []int) bool {
			requested := specsFromSeeds(reqSeeds)
			existing := make(map[string]struct{})
			for _, s := range specsFromSeeds(existSeeds) {
				existing[s.Key()] = struct{}{}
			}

			fresh, _ := Partition(requested, existing)

			grown := make(map[string]struct{}, len(existing)+len(fresh))
			for k := range existing {
				grown[k] = struct{}{}
			}
			for _, s := range fresh {
				grown[s.Key()] = struct{}{}
			}

			again, _ := Partition(requested, grown)
			return len(again) == 0
		},
		seedsGen,
		seedsGen,
	))

	properties.Property("each bucket preserves request order", prop.ForAll(
		func(reqSeeds, existSeeds []int) bool {
			requested := specsFromSeeds(reqSeeds)
			existing := make(map[string]struct{})
			for _, s := range specsFromSeeds(existSeeds) {
				existing[s.Key()] = struct{}{}
			}

			fresh, duplicate := Partition(requested, existing)
			return isSubsequenceByKey(fresh, requested) && isSubsequenceByKey(duplicate, requested)
		},
		seedsGen,
		seedsGen,
	))

	properties.TestingRun(t)
}

// isSubsequenceByKey reports whether the keys of sub appear in order
// within the keys of full.
func isSubsequenceByKey(sub, full []ChartSpec) bool {
	i := 0
	for _, s := range full {
		if i < len(sub) && sub[i].Key() == s.Key() {
			i++
		}
	}
	return i == len(sub)
}
