package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/plotforge/plotforge/pkg/types"
)

// maxDistinctTracked bounds the per-column distinct value map so a
// high-cardinality column cannot balloon memory.
const maxDistinctTracked = 10000

// nullTokens are the cell values treated as missing, compared lowercase.
var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"null": {},
	"none": {},
	"nan":  {},
	"-":    {},
}

func isNull(cell string) bool {
	_, ok := nullTokens[strings.ToLower(cell)]
	return ok
}

// datetimeLayouts are tried in order when classifying cells.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseDatetime parses a cell against the supported layouts, in order.
// The renderer uses it to put datetime axes in chronological order.
func ParseDatetime(s string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parsesAsDatetime(s string) bool {
	_, ok := ParseDatetime(s)
	return ok
}

func parsesAsBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

// colAcc accumulates per-column state during the scan.
type colAcc struct {
	name    string
	nonNull int
	missing int

	// parse tallies over non-null cells
	numCnt  int
	boolCnt int
	dtCnt   int

	// numeric stats via Welford
	n    int
	mean float64
	m2   float64
	min  float64
	max  float64
	nums []float64 // retained for quantiles and the median fill

	values map[string]int // distinct non-null cells with counts
}

func (c *colAcc) observe(cell string) {
	if isNull(cell) {
		c.missing++
		return
	}
	c.nonNull++

	if _, tracked := c.values[cell]; tracked || len(c.values) < maxDistinctTracked {
		c.values[cell]++
	}

	if x, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsInf(x, 0) && !math.IsNaN(x) {
		c.numCnt++
		c.n++
		if x < c.min {
			c.min = x
		}
		if x > c.max {
			c.max = x
		}
		delta := x - c.mean
		c.mean += delta / float64(c.n)
		c.m2 += delta * (x - c.mean)
		c.nums = append(c.nums, x)
		return
	}
	if parsesAsBool(cell) {
		c.boolCnt++
		return
	}
	if parsesAsDatetime(cell) {
		c.dtCnt++
	}
}

// Analyze reads a CSV stream and returns the dataset profile together
// with the cleaned table. Column kinds follow all-or-nothing coercion:
// a column is numeric, boolean, or datetime only when every non-null
// cell parses as that kind, otherwise it is text, and low-cardinality
// text becomes categorical. Missing cells are filled afterwards, median
// for numeric columns and mode for everything else.
func Analyze(r io.Reader, datasetName string, opt Options) (*DatasetProfile, *Table, error) {
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultOptions().MaxRows
	}
	catMaxUnique := opt.CategoricalMaxUnique
	if catMaxUnique <= 0 {
		catMaxUnique = DefaultOptions().CategoricalMaxUnique
	}
	topValues := opt.TopValues
	if topValues <= 0 {
		topValues = DefaultOptions().TopValues
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrEmptyDataset
		}
		return nil, nil, fmt.Errorf("profile: read header: %w", err)
	}
	names := normalizeHeader(header)
	ncol := len(names)
	if ncol == 0 {
		return nil, nil, ErrNoColumns
	}

	cols := make([]*colAcc, ncol)
	for i, name := range names {
		cols[i] = &colAcc{
			name:   name,
			min:    math.Inf(1),
			max:    math.Inf(-1),
			values: make(map[string]int),
		}
	}

	var rows [][]string
	totalRows := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("profile: read row %d: %w", totalRows+1, err)
		}
		totalRows++
		if len(rows) >= maxRows {
			continue
		}

		row := make([]string, ncol)
		for j := 0; j < ncol; j++ {
			var cell string
			if j < len(rec) {
				cell = strings.TrimSpace(rec[j])
			}
			row[j] = cell
			cols[j].observe(cell)
		}
		rows = append(rows, row)
	}
	if totalRows == 0 {
		return nil, nil, ErrEmptyDataset
	}

	prof := &DatasetProfile{
		DatasetName: datasetName,
		TotalRows:   totalRows,
		Rows:        len(rows),
		Columns:     make([]ColumnProfile, 0, ncol),
	}
	table := &Table{Rows: rows}

	for j, c := range cols {
		kind := c.kind(catMaxUnique)
		cp := ColumnProfile{
			Name:    c.name,
			Kind:    kind,
			NonNull: c.nonNull,
			Missing: c.missing,
			Unique:  len(c.values),
		}
		if kind == types.KindNumeric {
			cp.Numeric = c.numericStats()
		}
		if kind.Discrete() {
			cp.TopValues = c.topValues(topValues)
		}

		if c.missing > 0 {
			fill := c.fillValue(kind)
			cp.FillValue = fill
			for _, row := range rows {
				if isNull(row[j]) {
					row[j] = fill
				}
			}
		}

		prof.Columns = append(prof.Columns, cp)
		table.Columns = append(table.Columns, types.Column{Name: c.name, Kind: kind})
	}

	prof.DuplicateRows = countDuplicateRows(rows)

	return prof, table, nil
}

// kind decides the column kind from the parse tallies.
func (c *colAcc) kind(catMaxUnique int) types.ColumnKind {
	switch {
	case c.nonNull > 0 && c.numCnt == c.nonNull:
		return types.KindNumeric
	case c.nonNull > 0 && c.boolCnt == c.nonNull:
		return types.KindBoolean
	case c.nonNull > 0 && c.dtCnt == c.nonNull:
		return types.KindDatetime
	}
	if c.nonNull > 0 && len(c.values) <= catMaxUnique {
		return types.KindCategorical
	}
	return types.KindText
}

// numericStats builds the summary statistics from the accumulated values.
func (c *colAcc) numericStats() *NumericStats {
	stats := &NumericStats{Min: c.min, Max: c.max, Mean: c.mean}
	if c.n > 1 {
		stats.Std = math.Sqrt(c.m2 / float64(c.n-1))
	}

	sorted := make([]float64, len(c.nums))
	copy(sorted, c.nums)
	sort.Float64s(sorted)
	stats.Q1 = quantile(sorted, 0.25)
	stats.Median = quantile(sorted, 0.5)
	stats.Q3 = quantile(sorted, 0.75)

	// IQR fences
	iqr := stats.Q3 - stats.Q1
	lower := stats.Q1 - 1.5*iqr
	upper := stats.Q3 + 1.5*iqr
	for _, v := range sorted {
		if v < lower || v > upper {
			stats.Outliers++
		}
	}
	return stats
}

// topValues returns the most frequent values, count descending, value
// ascending on ties, capped at limit.
func (c *colAcc) topValues(limit int) []ValueCount {
	if len(c.values) == 0 {
		return nil
	}
	tops := make([]ValueCount, 0, len(c.values))
	for v, n := range c.values {
		tops = append(tops, ValueCount{Value: v, Count: n})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops
}

// fillValue computes the replacement for missing cells: median for
// numeric columns, mode for everything else, "Unknown" when the column
// has no values at all.
func (c *colAcc) fillValue(kind types.ColumnKind) string {
	if kind == types.KindNumeric && len(c.nums) > 0 {
		sorted := make([]float64, len(c.nums))
		copy(sorted, c.nums)
		sort.Float64s(sorted)
		return strconv.FormatFloat(quantile(sorted, 0.5), 'g', -1, 64)
	}

	mode := ""
	best := 0
	for v, n := range c.values {
		if n > best || (n == best && (mode == "" || v < mode)) {
			mode = v
			best = n
		}
	}
	if mode == "" {
		return "Unknown"
	}
	return mode
}

// countDuplicateRows counts rows that repeat an earlier row exactly.
func countDuplicateRows(rows [][]string) int {
	seen := make(map[string]struct{}, len(rows))
	dups := 0
	for _, row := range rows {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// normalizeHeader cleans column names the way ingestion always has:
// trim, spaces to underscores, lowercase. Empty names become column_N
// and repeats get a numeric suffix so names stay unique.
func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, raw := range header {
		s := strings.TrimPrefix(raw, "\uFEFF")
		s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
		if s == "" {
			s = fmt.Sprintf("column_%d", i+1)
		}
		name := s
		for k := 2; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", s, k)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// quantile returns the linearly interpolated q-quantile of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
