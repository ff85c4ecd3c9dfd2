// Package types provides core data types shared across Plotforge components.
package types

import "strings"

// ColumnKind classifies a dataset column for chart eligibility purposes.
type ColumnKind string

const (
	// KindNumeric covers integer and floating point columns.
	KindNumeric ColumnKind = "numeric"

	// KindCategorical covers low-cardinality text columns (labels, groups).
	KindCategorical ColumnKind = "categorical"

	// KindDatetime covers columns whose values parse as dates or timestamps.
	KindDatetime ColumnKind = "datetime"

	// KindText covers free-form, high-cardinality text columns.
	KindText ColumnKind = "text"

	// KindBoolean covers two-valued truth columns (true/false, yes/no, 0/1).
	KindBoolean ColumnKind = "boolean"
)

// Valid reports whether the kind is one of the recognized column kinds.
func (k ColumnKind) Valid() bool {
	switch k {
	case KindNumeric, KindCategorical, KindDatetime, KindText, KindBoolean:
		return true
	}
	return false
}

// Discrete reports whether the kind pairs as a category axis.
// Text and boolean columns group like categoricals when charted.
func (k ColumnKind) Discrete() bool {
	switch k {
	case KindCategorical, KindText, KindBoolean:
		return true
	}
	return false
}

// ParseColumnKind parses a column kind name, case-insensitively.
func ParseColumnKind(s string) (ColumnKind, error) {
	k := ColumnKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", ErrUnknownColumnKind
	}
	return k, nil
}

// Column pairs a dataset column name with its inferred kind.
type Column struct {
	// Name is the column header as it appears in the dataset
	Name string `json:"name"`

	// Kind is the inferred column kind
	Kind ColumnKind `json:"kind"`
}
