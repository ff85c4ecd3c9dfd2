package render

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/internal/storage"
	"github.com/plotforge/plotforge/pkg/types"
)

// figDoc mirrors the stored figure loosely so tests can poke at any trace
// type without declaring every field.
type figDoc struct {
	Data   []map[string]interface{} `json:"data"`
	Layout map[string]interface{}   `json:"layout"`
}

func setupRenderer(t *testing.T, opts Options) (*Renderer, *storage.LocalStorage, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "render-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	store, err := storage.NewLocalStorage(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to create storage: %v", err)
	}
	return NewRenderer(store, opts), store, func() { os.RemoveAll(tmpDir) }
}

func renderOne(t *testing.T, spec charts.ChartSpec, table *profile.Table, prof *profile.DatasetProfile) (*Artifact, figDoc) {
	t.Helper()
	r, store, cleanup := setupRenderer(t, DefaultOptions())
	defer cleanup()

	ctx := context.Background()
	art, err := r.Render(ctx, "sess-1", "01CHART", spec, table, prof)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	data, err := store.Get(ctx, art.Path)
	if err != nil {
		t.Fatalf("failed to read figure back: %v", err)
	}
	var doc figDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("stored figure is not valid JSON: %v", err)
	}
	return art, doc
}

func numericPairTable() *profile.Table {
	return &profile.Table{
		Columns: []types.Column{
			{Name: "price", Kind: types.KindNumeric},
			{Name: "score", Kind: types.KindNumeric},
		},
		Rows: [][]string{
			{"10", "1"}, {"20", "2"}, {"30", "3"}, {"40", "4"}, {"100", "5"},
		},
	}
}

func mixedTable() *profile.Table {
	return &profile.Table{
		Columns: []types.Column{
			{Name: "city", Kind: types.KindCategorical},
			{Name: "price", Kind: types.KindNumeric},
		},
		Rows: [][]string{
			{"austin", "10"}, {"boston", "20"}, {"austin", "30"},
			{"chicago", "40"}, {"austin", "50"}, {"boston", "60"},
		},
	}
}

func datetimeTable() *profile.Table {
	return &profile.Table{
		Columns: []types.Column{
			{Name: "day", Kind: types.KindDatetime},
			{Name: "sales", Kind: types.KindNumeric},
		},
		Rows: [][]string{
			{"2024-01-03", "30"}, {"2024-01-01", "10"}, {"2024-01-02", "20"},
		},
	}
}

func traceFloats(t *testing.T, trace map[string]interface{}, key string) []float64 {
	t.Helper()
	raw, ok := trace[key].([]interface{})
	if !ok {
		t.Fatalf("trace field %s missing or not an array: %v", key, trace[key])
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, ok := v.(float64)
		if !ok {
			t.Fatalf("trace field %s[%d] is %T, want number", key, i, v)
		}
		out[i] = f
	}
	return out
}

func traceStrings(t *testing.T, trace map[string]interface{}, key string) []string {
	t.Helper()
	raw, ok := trace[key].([]interface{})
	if !ok {
		t.Fatalf("trace field %s missing or not an array: %v", key, trace[key])
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			t.Fatalf("trace field %s[%d] is %T, want string", key, i, v)
		}
		out[i] = s
	}
	return out
}

func layoutTitle(t *testing.T, doc figDoc) string {
	t.Helper()
	title, ok := doc.Layout["title"].(map[string]interface{})
	if !ok {
		t.Fatalf("layout title missing: %v", doc.Layout)
	}
	text, _ := title["text"].(string)
	return text
}

func TestRender_Scatter(t *testing.T) {
	spec := charts.ChartSpec{Type: charts.TypeScatter, X: "price", Y: "score", Theme: charts.ThemeLight}
	art, doc := renderOne(t, spec, numericPairTable(), nil)

	if art.Path != storage.FigurePath("sess-1", "01CHART") {
		t.Errorf("unexpected artifact path %s", art.Path)
	}
	if art.Bytes == 0 || art.Traces != 1 {
		t.Errorf("artifact incomplete: %+v", art)
	}

	trace := doc.Data[0]
	if trace["type"] != "scatter" || trace["mode"] != "markers" {
		t.Errorf("wrong trace kind: %v", trace)
	}
	xs := traceFloats(t, trace, "x")
	ys := traceFloats(t, trace, "y")
	if len(xs) != 5 || len(ys) != 5 {
		t.Errorf("expected 5 points, got %d/%d", len(xs), len(ys))
	}
	if layoutTitle(t, doc) != "Scatter Plot: price vs score" {
		t.Errorf("wrong title %q", layoutTitle(t, doc))
	}
	if doc.Layout["plot_bgcolor"] != "white" {
		t.Errorf("light theme should have white background, got %v", doc.Layout["plot_bgcolor"])
	}
}

func TestRender_DarkTheme(t *testing.T) {
	spec := charts.ChartSpec{Type: charts.TypeScatter, X: "price", Y: "score", Theme: charts.ThemeDark}
	_, doc := renderOne(t, spec, numericPairTable(), nil)

	if doc.Layout["plot_bgcolor"] != darkBackground || doc.Layout["paper_bgcolor"] != darkBackground {
		t.Errorf("dark backgrounds not applied: %v", doc.Layout)
	}
	font, _ := doc.Layout["font"].(map[string]interface{})
	if font == nil || font["color"] != darkFont {
		t.Errorf("dark font not applied: %v", doc.Layout["font"])
	}
}

func TestRender_BarSingleCategorical(t *testing.T) {
	spec := charts.ChartSpec{Type: charts.TypeBar, X: "city", Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, mixedTable(), nil)

	trace := doc.Data[0]
	if trace["type"] != "bar" {
		t.Fatalf("expected bar trace, got %v", trace["type"])
	}
	cats := traceStrings(t, trace, "x")
	counts := traceFloats(t, trace, "y")
	if cats[0] != "austin" || counts[0] != 3 {
		t.Errorf("top category wrong: %v %v", cats, counts)
	}
	if cats[1] != "boston" || counts[1] != 2 {
		t.Errorf("second category wrong: %v %v", cats, counts)
	}
}

func TestRender_BarMeanEitherOrientation(t *testing.T) {
	table := mixedTable()

	// Categorical x, numeric y
	spec := charts.ChartSpec{Type: charts.TypeBar, X: "city", Y: "price", Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, table, nil)
	trace := doc.Data[0]
	cats := traceStrings(t, trace, "x")
	means := traceFloats(t, trace, "y")
	if cats[0] != "austin" || means[0] != 30 {
		t.Errorf("austin mean wrong: %v %v", cats, means)
	}

	// Swapped: numeric x, categorical y lands on the same figure shape
	spec = charts.ChartSpec{Type: charts.TypeBar, X: "price", Y: "city", Theme: charts.ThemeLight}
	_, doc = renderOne(t, spec, table, nil)
	trace = doc.Data[0]
	if got := traceStrings(t, trace, "x"); got[0] != "austin" {
		t.Errorf("swapped axes should still group by city: %v", got)
	}
}

func TestRender_GroupedBar(t *testing.T) {
	table := &profile.Table{
		Columns: []types.Column{
			{Name: "region", Kind: types.KindCategorical},
			{Name: "tier", Kind: types.KindCategorical},
		},
		Rows: [][]string{
			{"east", "gold"}, {"east", "silver"}, {"west", "gold"},
			{"east", "gold"}, {"west", "silver"},
		},
	}
	spec := charts.ChartSpec{Type: charts.TypeGroupedBar, X: "region", Y: "tier", Theme: charts.ThemeLight}
	art, doc := renderOne(t, spec, table, nil)

	if art.Traces != 2 {
		t.Fatalf("expected one trace per tier, got %d", art.Traces)
	}
	if doc.Layout["barmode"] != "group" {
		t.Errorf("expected grouped barmode, got %v", doc.Layout["barmode"])
	}

	// gold trace: east=2, west=1
	var gold map[string]interface{}
	for _, trace := range doc.Data {
		if trace["name"] == "gold" {
			gold = trace
		}
	}
	if gold == nil {
		t.Fatal("gold trace missing")
	}
	counts := traceFloats(t, gold, "y")
	if counts[0] != 2 || counts[1] != 1 {
		t.Errorf("gold counts wrong: %v", counts)
	}
}

func TestRender_BoxSingle(t *testing.T) {
	table := &profile.Table{
		Columns: []types.Column{{Name: "price", Kind: types.KindNumeric}},
		Rows:    [][]string{{"1"}, {"2"}, {"3"}, {"4"}, {"100"}},
	}
	spec := charts.ChartSpec{Type: charts.TypeBox, X: "price", Theme: charts.ThemeLight}
	art, doc := renderOne(t, spec, table, nil)

	if art.Traces != 2 {
		t.Fatalf("expected box plus outlier overlay, got %d traces", art.Traces)
	}
	box := doc.Data[0]
	if box["type"] != "box" {
		t.Fatalf("expected box trace, got %v", box["type"])
	}
	if med := traceFloats(t, box, "median"); med[0] != 3 {
		t.Errorf("median wrong: %v", med)
	}
	if q := traceFloats(t, box, "q1"); q[0] != 2 {
		t.Errorf("q1 wrong: %v", q)
	}

	outliers := doc.Data[1]
	if ys := traceFloats(t, outliers, "y"); len(ys) != 1 || ys[0] != 100 {
		t.Errorf("outlier overlay wrong: %v", ys)
	}
}

func TestRender_BoxPerCategory(t *testing.T) {
	spec := charts.ChartSpec{Type: charts.TypeBox, X: "city", Y: "price", Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, mixedTable(), nil)

	box := doc.Data[0]
	cats := traceStrings(t, box, "x")
	if len(cats) != 3 || cats[0] != "austin" {
		t.Errorf("per-category boxes wrong: %v", cats)
	}
	if meds := traceFloats(t, box, "median"); len(meds) != 3 || meds[0] != 30 {
		t.Errorf("medians wrong: %v", meds)
	}
}

func TestRender_Histogram(t *testing.T) {
	table := &profile.Table{
		Columns: []types.Column{{Name: "price", Kind: types.KindNumeric}},
		Rows:    [][]string{{"0"}, {"1"}, {"2"}, {"3"}, {"4"}, {"5"}, {"6"}, {"7"}, {"8"}, {"10"}},
	}
	spec := charts.ChartSpec{Type: charts.TypeHistogram, X: "price", Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, table, nil)

	trace := doc.Data[0]
	if trace["type"] != "bar" {
		t.Fatalf("expected bar trace, got %v", trace["type"])
	}
	counts := traceFloats(t, trace, "y")
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total != 10 {
		t.Errorf("histogram counts sum to %g, want 10", total)
	}
	if w, _ := trace["width"].(float64); w <= 0 {
		t.Errorf("expected positive bar width, got %v", trace["width"])
	}
}

func TestRender_Distribution(t *testing.T) {
	table := &profile.Table{
		Columns: []types.Column{{Name: "price", Kind: types.KindNumeric}},
		Rows: [][]string{
			{"1"}, {"2"}, {"2"}, {"3"}, {"3"}, {"3"}, {"4"}, {"4"}, {"5"},
		},
	}
	spec := charts.ChartSpec{Type: charts.TypeDistribution, X: "price", Theme: charts.ThemeLight}
	art, doc := renderOne(t, spec, table, nil)

	if art.Traces != 2 {
		t.Fatalf("expected histogram plus density, got %d traces", art.Traces)
	}
	if doc.Data[0]["type"] != "bar" || doc.Data[1]["mode"] != "lines" {
		t.Errorf("trace kinds wrong: %v / %v", doc.Data[0]["type"], doc.Data[1]["mode"])
	}

	yaxis, _ := doc.Layout["yaxis"].(map[string]interface{})
	title, _ := yaxis["title"].(map[string]interface{})
	if title["text"] != "Density" {
		t.Errorf("expected density y axis, got %v", title)
	}
}

func TestRender_LineChronological(t *testing.T) {
	spec := charts.ChartSpec{Type: charts.TypeLine, X: "day", Y: "sales", Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, datetimeTable(), nil)

	trace := doc.Data[0]
	if trace["mode"] != "lines" {
		t.Fatalf("expected line mode, got %v", trace["mode"])
	}
	days := traceStrings(t, trace, "x")
	sales := traceFloats(t, trace, "y")
	wantDays := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	wantSales := []float64{10, 20, 30}
	for i := range wantDays {
		if days[i] != wantDays[i] || sales[i] != wantSales[i] {
			t.Errorf("point %d: got (%s, %g), want (%s, %g)", i, days[i], sales[i], wantDays[i], wantSales[i])
		}
	}
}

func TestRender_LineSingleDatetime(t *testing.T) {
	table := &profile.Table{
		Columns: []types.Column{{Name: "day", Kind: types.KindDatetime}},
		Rows: [][]string{
			{"2024-01-02"}, {"2024-01-01"}, {"2024-01-02"}, {"2024-01-03"},
		},
	}
	spec := charts.ChartSpec{Type: charts.TypeLine, X: "day", Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, table, nil)

	trace := doc.Data[0]
	days := traceStrings(t, trace, "x")
	counts := traceFloats(t, trace, "y")
	if days[0] != "2024-01-01" || counts[0] != 1 {
		t.Errorf("first point wrong: %v %v", days, counts)
	}
	if days[1] != "2024-01-02" || counts[1] != 2 {
		t.Errorf("repeated day should count 2: %v %v", days, counts)
	}
}

func TestRender_Correlation(t *testing.T) {
	table := &profile.Table{
		Columns: []types.Column{
			{Name: "a", Kind: types.KindNumeric},
			{Name: "b", Kind: types.KindNumeric},
			{Name: "flat", Kind: types.KindNumeric},
			{Name: "city", Kind: types.KindCategorical},
		},
		Rows: [][]string{
			{"1", "10", "5", "x"}, {"2", "20", "5", "y"}, {"3", "30", "5", "z"},
		},
	}
	spec := charts.ChartSpec{Type: charts.TypeCorrelation, Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, table, nil)

	trace := doc.Data[0]
	if trace["type"] != "heatmap" {
		t.Fatalf("expected heatmap, got %v", trace["type"])
	}
	cols := traceStrings(t, trace, "x")
	if len(cols) != 3 {
		t.Fatalf("expected 3 numeric columns, got %v", cols)
	}

	z, _ := trace["z"].([]interface{})
	row0, _ := z[0].([]interface{})
	if row0[0] != 1.0 {
		t.Errorf("diagonal should be 1, got %v", row0[0])
	}
	if row0[1] != 1.0 {
		t.Errorf("a/b correlation should be 1, got %v", row0[1])
	}
	if row0[2] != nil {
		t.Errorf("constant column cell should be null, got %v", row0[2])
	}
}

func TestRender_CorrelationNeedsTwoNumeric(t *testing.T) {
	r, _, cleanup := setupRenderer(t, DefaultOptions())
	defer cleanup()

	table := &profile.Table{
		Columns: []types.Column{{Name: "a", Kind: types.KindNumeric}},
		Rows:    [][]string{{"1"}, {"2"}},
	}
	spec := charts.ChartSpec{Type: charts.TypeCorrelation, Theme: charts.ThemeLight}
	_, err := r.Render(context.Background(), "s", "c", spec, table, nil)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestRender_PairplotCapsColumns(t *testing.T) {
	cols := make([]types.Column, 7)
	row := make([]string, 7)
	for i := range cols {
		cols[i] = types.Column{Name: string(rune('a' + i)), Kind: types.KindNumeric}
		row[i] = "1"
	}
	row2 := make([]string, 7)
	for i := range row2 {
		row2[i] = "2"
	}
	table := &profile.Table{Columns: cols, Rows: [][]string{row, row2}}

	spec := charts.ChartSpec{Type: charts.TypePairplot, Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, table, nil)

	trace := doc.Data[0]
	if trace["type"] != "splom" {
		t.Fatalf("expected splom, got %v", trace["type"])
	}
	dims, _ := trace["dimensions"].([]interface{})
	if len(dims) != 5 {
		t.Errorf("expected pairplot capped at 5 columns, got %d", len(dims))
	}
}

func TestRender_Missing(t *testing.T) {
	prof := &profile.DatasetProfile{
		Columns: []profile.ColumnProfile{
			{Name: "price", Missing: 2},
			{Name: "city", Missing: 0},
			{Name: "notes", Missing: 7},
		},
	}
	spec := charts.ChartSpec{Type: charts.TypeMissing, Theme: charts.ThemeLight}
	_, doc := renderOne(t, spec, nil, prof)

	trace := doc.Data[0]
	if trace["orientation"] != "h" {
		t.Errorf("expected horizontal bars, got %v", trace["orientation"])
	}
	names := traceStrings(t, trace, "y")
	counts := traceFloats(t, trace, "x")
	if len(names) != 2 {
		t.Fatalf("zero-missing columns should be dropped: %v", names)
	}
	if names[0] != "notes" || counts[0] != 7 {
		t.Errorf("largest tally should come first: %v %v", names, counts)
	}
}

func TestRender_MissingNothingToShow(t *testing.T) {
	r, _, cleanup := setupRenderer(t, DefaultOptions())
	defer cleanup()

	prof := &profile.DatasetProfile{
		Columns: []profile.ColumnProfile{{Name: "price", Missing: 0}},
	}
	spec := charts.ChartSpec{Type: charts.TypeMissing, Theme: charts.ThemeLight}
	_, err := r.Render(context.Background(), "s", "c", spec, nil, prof)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestRender_FigureTooLarge(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxFigureBytes = 64
	r, _, cleanup := setupRenderer(t, opts)
	defer cleanup()

	spec := charts.ChartSpec{Type: charts.TypeScatter, X: "price", Y: "score", Theme: charts.ThemeLight}
	_, err := r.Render(context.Background(), "s", "c", spec, numericPairTable(), nil)
	if !errors.Is(err, ErrFigureTooLarge) {
		t.Errorf("expected ErrFigureTooLarge, got %v", err)
	}
}

func TestRender_UnknownColumn(t *testing.T) {
	r, _, cleanup := setupRenderer(t, DefaultOptions())
	defer cleanup()

	spec := charts.ChartSpec{Type: charts.TypeScatter, X: "nope", Y: "score", Theme: charts.ThemeLight}
	if _, err := r.Render(context.Background(), "s", "c", spec, numericPairTable(), nil); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestRender_UnknownChartType(t *testing.T) {
	r, _, cleanup := setupRenderer(t, DefaultOptions())
	defer cleanup()

	spec := charts.ChartSpec{Type: charts.ChartType("pie"), Theme: charts.ThemeLight}
	if _, err := r.Render(context.Background(), "s", "c", spec, numericPairTable(), nil); err == nil {
		t.Error("expected error for unknown chart type")
	}
}
