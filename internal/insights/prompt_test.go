package insights

import (
	"fmt"
	"strings"
	"testing"

	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/pkg/types"
)

// sampleProfile is the prompt-builder fixture shared with the service tests.
func sampleProfile() *profile.DatasetProfile {
	return &profile.DatasetProfile{
		DatasetName:   "sample.csv",
		TotalRows:     6,
		Rows:          5,
		DuplicateRows: 1,
		Columns: []profile.ColumnProfile{
			{
				Name: "price", Kind: types.KindNumeric, NonNull: 4, Missing: 1, Unique: 4,
				Numeric: &profile.NumericStats{
					Min: 10, Max: 100, Mean: 40, Std: 31.62,
					Median: 30, Q1: 20, Q3: 40, Outliers: 1,
				},
			},
			{
				Name: "city", Kind: types.KindCategorical, NonNull: 5, Unique: 3,
				TopValues: []profile.ValueCount{
					{Value: "austin", Count: 3}, {Value: "boston", Count: 1}, {Value: "chicago", Count: 1},
				},
			},
			{Name: "day", Kind: types.KindDatetime, NonNull: 4, Missing: 1, Unique: 4},
		},
	}
}

func TestBuildPromptSummarizesShape(t *testing.T) {
	prompt := BuildPrompt(sampleProfile())

	for _, want := range []string{
		"- Dataset: sample.csv",
		"- Rows: 5",
		"- Columns: 3",
		"- Duplicate rows: 1",
		"- Numeric columns: 1",
		"- Categorical columns: 1",
		"- Datetime columns: 1",
		"- Missing cells: 2",
	} {
		if !strings.Contains(prompt, want+"\n") {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}
}

func TestBuildPromptColumnLines(t *testing.T) {
	prompt := BuildPrompt(sampleProfile())

	if !strings.Contains(prompt,
		"- price (numeric): missing 1, unique 4, min 10, max 100, mean 40, std 31.62, outliers 1") {
		t.Errorf("numeric column line missing\n%s", prompt)
	}
	if !strings.Contains(prompt, "- city (categorical): missing 0, unique 3, top: austin (3), boston (1), chicago (1)") {
		t.Errorf("categorical column line missing\n%s", prompt)
	}
	if !strings.Contains(prompt, "- day (datetime): missing 1, unique 4\n") {
		t.Errorf("datetime column line missing\n%s", prompt)
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	a := BuildPrompt(sampleProfile())
	b := BuildPrompt(sampleProfile())
	if a != b {
		t.Fatal("prompt is not deterministic for identical profiles")
	}
	if PromptHash(a) != PromptHash(b) {
		t.Fatal("hash is not deterministic for identical prompts")
	}

	changed := sampleProfile()
	changed.Rows = 9999
	if PromptHash(BuildPrompt(changed)) == PromptHash(a) {
		t.Fatal("expected different hash for a different profile")
	}
}

func TestBuildPromptTruncatesWideDatasets(t *testing.T) {
	prof := &profile.DatasetProfile{DatasetName: "wide.csv", Rows: 10}
	for i := 0; i < maxPromptColumns+5; i++ {
		prof.Columns = append(prof.Columns, profile.ColumnProfile{
			Name: fmt.Sprintf("col_%02d", i), Kind: types.KindNumeric,
		})
	}

	prompt := BuildPrompt(prof)
	if !strings.Contains(prompt, "- ... and 5 more columns") {
		t.Errorf("expected truncation marker\n%s", prompt)
	}
	if strings.Contains(prompt, fmt.Sprintf("col_%02d", maxPromptColumns)) {
		t.Error("columns past the cap should not be listed")
	}
}

func TestPromptHashFixedWidth(t *testing.T) {
	h := PromptHash("anything")
	if len(h) != 16 {
		t.Errorf("expected 16 hex chars, got %q", h)
	}
}
