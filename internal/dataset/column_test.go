package dataset

import (
	"testing"

	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/pkg/types"
)

func fixtureTable() *profile.Table {
	return &profile.Table{
		Columns: []types.Column{
			{Name: "price", Kind: types.KindNumeric},
			{Name: "city", Kind: types.KindCategorical},
		},
		Rows: [][]string{
			{"100.5", "Austin"},
			{"bad", "Boston"},
			{"150", "Austin"},
		},
	}
}

func TestNumeric(t *testing.T) {
	col, err := Numeric(fixtureTable(), "price")
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	if len(col.Values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(col.Values))
	}
	if !col.Valid[0] || col.Valid[1] || !col.Valid[2] {
		t.Errorf("validity mask wrong: %v", col.Valid)
	}
	if col.Values[0] != 100.5 || col.Values[2] != 150 {
		t.Errorf("values wrong: %v", col.Values)
	}
	if col.ValidCount() != 2 {
		t.Errorf("expected 2 valid, got %d", col.ValidCount())
	}

	compact := col.Compact()
	if len(compact) != 2 || compact[0] != 100.5 || compact[1] != 150 {
		t.Errorf("compact wrong: %v", compact)
	}
}

func TestNumeric_RejectsNonFinite(t *testing.T) {
	table := &profile.Table{
		Columns: []types.Column{{Name: "v", Kind: types.KindNumeric}},
		Rows:    [][]string{{"Inf"}, {"-Inf"}, {"NaN"}, {"1"}},
	}
	col, err := Numeric(table, "v")
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}
	if col.ValidCount() != 1 {
		t.Errorf("expected only the finite value to be valid, got %d", col.ValidCount())
	}
}

func TestNumeric_UnknownColumn(t *testing.T) {
	if _, err := Numeric(fixtureTable(), "missing"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestStrings(t *testing.T) {
	vals, err := Strings(fixtureTable(), "city")
	if err != nil {
		t.Fatalf("materialize failed: %v", err)
	}
	want := []string{"Austin", "Boston", "Austin"}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("value %d: got %q, want %q", i, vals[i], want[i])
		}
	}

	if _, err := Strings(fixtureTable(), "missing"); err == nil {
		t.Error("expected error for unknown column")
	}
}
