package compute

import "github.com/plotforge/plotforge/internal/profile"

// MissingCount pairs a column with its ingestion-time missing tally.
type MissingCount struct {
	Column  string
	Missing int
}

// MissingCounts extracts the per-column missing tallies recorded at
// profiling time, in original column order. Snapshots are stored with
// missing cells already filled, so the profile is the only place these
// observations survive.
func MissingCounts(prof *profile.DatasetProfile) []MissingCount {
	out := make([]MissingCount, len(prof.Columns))
	for i, col := range prof.Columns {
		out[i] = MissingCount{Column: col.Name, Missing: col.Missing}
	}
	return out
}
