package compute

import (
	"fmt"
	"sort"

	"github.com/plotforge/plotforge/internal/dataset"
)

// DefaultTopCategories caps category axes so wide-cardinality columns stay
// readable.
const DefaultTopCategories = 20

// OtherCategory collects the tail beyond the top-N cut.
const OtherCategory = "(other)"

// GroupStat holds per-category aggregates for a single grouping column.
type GroupStat struct {
	Category string
	Count    int
	Sum      float64
	Mean     float64
}

type groupAcc struct {
	count      int
	validCount int
	sum        float64
}

func (a *groupAcc) stat(category string) GroupStat {
	s := GroupStat{Category: category, Count: a.count, Sum: a.sum}
	if a.validCount > 0 {
		s.Mean = a.sum / float64(a.validCount)
	}
	return s
}

// GroupStats aggregates vals by category. Categories are ordered by
// descending count, ties broken by name, and capped at topN with the
// remainder summed into OtherCategory. A nil vals produces pure value
// counts with zero Sum and Mean.
func GroupStats(cats []string, vals *dataset.NumericColumn, topN int) ([]GroupStat, error) {
	if vals != nil && len(vals.Values) != len(cats) {
		return nil, fmt.Errorf("compute: group stats over %d categories but %d values", len(cats), len(vals.Values))
	}
	if topN <= 0 {
		topN = DefaultTopCategories
	}

	groups := make(map[string]*groupAcc)
	for i, cat := range cats {
		acc, ok := groups[cat]
		if !ok {
			acc = &groupAcc{}
			groups[cat] = acc
		}
		acc.count++
		if vals != nil && vals.Valid[i] {
			acc.validCount++
			acc.sum += vals.Values[i]
		}
	}

	order := make([]string, 0, len(groups))
	for cat := range groups {
		order = append(order, cat)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := groups[order[i]], groups[order[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return order[i] < order[j]
	})

	var folded *groupAcc
	if len(order) > topN {
		folded = &groupAcc{}
		for _, cat := range order[topN:] {
			acc := groups[cat]
			folded.count += acc.count
			folded.validCount += acc.validCount
			folded.sum += acc.sum
		}
		order = order[:topN]
	}

	stats := make([]GroupStat, 0, len(order)+1)
	for _, cat := range order {
		stats = append(stats, groups[cat].stat(cat))
	}
	if folded != nil {
		stats = append(stats, folded.stat(OtherCategory))
	}
	return stats, nil
}

// Cell holds aggregates for one (secondary, primary) category pair.
type Cell struct {
	Count int
	Sum   float64
	Mean  float64
}

// CrossedStats holds two-key grouped aggregates for grouped bar charts.
// Cells is indexed [secondary][primary].
type CrossedStats struct {
	Primary   []string
	Secondary []string
	Cells     [][]Cell
}

// CrossGroupStats aggregates vals by a (primary, secondary) category pair.
// Both axes are ordered by descending total count then name and capped at
// topN; pairs beyond the cut are dropped rather than folded, since a
// crossed "(other)" cell would mix unrelated groups.
func CrossGroupStats(primary, secondary []string, vals *dataset.NumericColumn, topN int) (*CrossedStats, error) {
	if len(primary) != len(secondary) {
		return nil, fmt.Errorf("compute: crossed grouping over %d primary but %d secondary categories", len(primary), len(secondary))
	}
	if vals != nil && len(vals.Values) != len(primary) {
		return nil, fmt.Errorf("compute: crossed grouping over %d categories but %d values", len(primary), len(vals.Values))
	}
	if topN <= 0 {
		topN = DefaultTopCategories
	}

	type pairKey struct{ p, s string }
	pairs := make(map[pairKey]*groupAcc)
	primTotal := make(map[string]int)
	secTotal := make(map[string]int)

	for i := range primary {
		key := pairKey{primary[i], secondary[i]}
		acc, ok := pairs[key]
		if !ok {
			acc = &groupAcc{}
			pairs[key] = acc
		}
		acc.count++
		if vals != nil && vals.Valid[i] {
			acc.validCount++
			acc.sum += vals.Values[i]
		}
		primTotal[primary[i]]++
		secTotal[secondary[i]]++
	}

	primOrder := topCategories(primTotal, topN)
	secOrder := topCategories(secTotal, topN)

	cells := make([][]Cell, len(secOrder))
	for si, s := range secOrder {
		cells[si] = make([]Cell, len(primOrder))
		for pi, p := range primOrder {
			acc, ok := pairs[pairKey{p, s}]
			if !ok {
				continue
			}
			st := acc.stat("")
			cells[si][pi] = Cell{Count: st.Count, Sum: st.Sum, Mean: st.Mean}
		}
	}

	return &CrossedStats{Primary: primOrder, Secondary: secOrder, Cells: cells}, nil
}

// topCategories orders categories by descending total then name, capped at n.
func topCategories(totals map[string]int, n int) []string {
	cats := make([]string, 0, len(totals))
	for cat := range totals {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if totals[cats[i]] != totals[cats[j]] {
			return totals[cats[i]] > totals[cats[j]]
		}
		return cats[i] < cats[j]
	})
	if len(cats) > n {
		cats = cats[:n]
	}
	return cats
}
