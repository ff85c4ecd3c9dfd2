// Package profile ingests raw CSV uploads: it infers a kind for every
// column, cleans missing values the same way every time, and produces
// the per-column statistics the gallery and insights endpoints serve.
package profile

import (
	"errors"

	"github.com/plotforge/plotforge/pkg/types"
)

// Sentinel errors returned by Analyze.
var (
	// ErrEmptyDataset is returned for files with no data rows.
	ErrEmptyDataset = errors.New("dataset has no data rows")
	// ErrNoColumns is returned for files whose header has no columns.
	ErrNoColumns = errors.New("dataset has no columns")
)

// Options controls ingestion behavior.
type Options struct {
	// MaxRows caps how many rows are retained; rows past the cap are
	// counted but dropped. 0 means the default.
	MaxRows int
	// CategoricalMaxUnique is the unique-value ceiling under which a
	// text column is treated as categorical.
	CategoricalMaxUnique int
	// TopValues is how many value counts to keep per discrete column.
	TopValues int
}

// DefaultOptions returns the ingestion defaults.
func DefaultOptions() Options {
	return Options{
		MaxRows:              200000,
		CategoricalMaxUnique: 50,
		TopValues:            10,
	}
}

// Table is the cleaned in-memory dataset: normalized header, trimmed
// cells, missing values filled. This is what gets snapshotted and what
// renders read back.
type Table struct {
	Columns []types.Column
	Rows    [][]string
}

// Header returns the column names in order.
func (t *Table) Header() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Kind returns the kind of the named column. The bool is false when the
// column does not exist.
func (t *Table) Kind(name string) (types.ColumnKind, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return "", false
	}
	return t.Columns[i].Kind, true
}

// DatasetProfile summarizes an ingested dataset. It is persisted as JSON
// alongside the session and served by the profile endpoint.
type DatasetProfile struct {
	DatasetName   string          `json:"dataset_name"`
	TotalRows     int             `json:"total_rows"`
	Rows          int             `json:"rows"`
	DuplicateRows int             `json:"duplicate_rows"`
	Columns       []ColumnProfile `json:"columns"`
}

// ColumnProfile captures the inferred kind and statistics of one column.
// Missing and Unique describe the column before cleaning; FillValue is
// what replaced the missing cells.
type ColumnProfile struct {
	Name      string           `json:"name"`
	Kind      types.ColumnKind `json:"kind"`
	NonNull   int              `json:"non_null"`
	Missing   int              `json:"missing"`
	Unique    int              `json:"unique"`
	Numeric   *NumericStats    `json:"numeric,omitempty"`
	TopValues []ValueCount     `json:"top_values,omitempty"`
	FillValue string           `json:"fill_value,omitempty"`
}

// NumericStats holds the summary statistics of a numeric column.
type NumericStats struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Median   float64 `json:"median"`
	Q1       float64 `json:"q1"`
	Q3       float64 `json:"q3"`
	Outliers int     `json:"outliers"`
}

// ValueCount is one entry of a discrete column's value tally.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}
