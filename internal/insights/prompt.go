package insights

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/pkg/types"
)

// maxPromptColumns bounds the per-column detail block for wide datasets.
const maxPromptColumns = 40

// maxPromptTopValues bounds how many dominant values a discrete column lists.
const maxPromptTopValues = 3

// BuildPrompt renders the analyst prompt for a dataset profile. The output is
// deterministic for a given profile so repeated requests hash to the same
// cached insight.
func BuildPrompt(prof *profile.DatasetProfile) string {
	var b strings.Builder

	b.WriteString("You are a senior data analyst. Analyze the dataset summary below.\n")
	b.WriteString("Your output must be structured markdown, concise, and actionable.\n\n")
	b.WriteString("## 1) High-Level Overview\n")
	b.WriteString("- Summarize rows, columns, missing values, duplicates, numeric vs categorical counts.\n")
	b.WriteString("- Mention 3-5 strong early insights.\n\n")
	b.WriteString("## 2) Data Quality\n")
	b.WriteString("- Call out missing values, duplicates, skewed distributions, and outlier-heavy columns.\n\n")
	b.WriteString("## 3) Key Findings\n")
	b.WriteString("Provide 5-7 concise insights across distributions, outliers, and categorical patterns.\n\n")
	b.WriteString("## 4) Suggested Charts\n")
	b.WriteString("List the exact column pairs to plot next, strongest candidates first,\n")
	b.WriteString("with 1-2 lines explaining why each pair is worth plotting.\n\n")
	b.WriteString("## 5) Recommended Next Steps\n")
	b.WriteString("Give clear steps for cleaning, feature engineering, and modeling direction.\n\n")

	b.WriteString("### Dataset Summary\n")
	writeShape(&b, prof)
	b.WriteString("\n### Columns\n")
	writeColumns(&b, prof)

	return b.String()
}

// PromptHash returns the catalog cache key for a prompt.
func PromptHash(prompt string) string {
	return fmt.Sprintf("%016x", murmur3.Sum64([]byte(prompt)))
}

func writeShape(b *strings.Builder, prof *profile.DatasetProfile) {
	var numeric, discrete, datetime, missing int
	for _, col := range prof.Columns {
		switch {
		case col.Kind == types.KindNumeric:
			numeric++
		case col.Kind == types.KindDatetime:
			datetime++
		default:
			discrete++
		}
		missing += col.Missing
	}
	fmt.Fprintf(b, "- Dataset: %s\n", prof.DatasetName)
	fmt.Fprintf(b, "- Rows: %d\n", prof.Rows)
	fmt.Fprintf(b, "- Columns: %d\n", len(prof.Columns))
	fmt.Fprintf(b, "- Duplicate rows: %d\n", prof.DuplicateRows)
	fmt.Fprintf(b, "- Numeric columns: %d\n", numeric)
	fmt.Fprintf(b, "- Categorical columns: %d\n", discrete)
	if datetime > 0 {
		fmt.Fprintf(b, "- Datetime columns: %d\n", datetime)
	}
	fmt.Fprintf(b, "- Missing cells: %d\n", missing)
}

func writeColumns(b *strings.Builder, prof *profile.DatasetProfile) {
	cols := prof.Columns
	truncated := 0
	if len(cols) > maxPromptColumns {
		truncated = len(cols) - maxPromptColumns
		cols = cols[:maxPromptColumns]
	}
	for _, col := range cols {
		fmt.Fprintf(b, "- %s (%s): missing %d, unique %d", col.Name, col.Kind, col.Missing, col.Unique)
		if col.Numeric != nil {
			fmt.Fprintf(b, ", min %s, max %s, mean %s, std %s",
				formatStat(col.Numeric.Min), formatStat(col.Numeric.Max),
				formatStat(col.Numeric.Mean), formatStat(col.Numeric.Std))
			if col.Numeric.Outliers > 0 {
				fmt.Fprintf(b, ", outliers %d", col.Numeric.Outliers)
			}
		}
		if len(col.TopValues) > 0 {
			tops := col.TopValues
			if len(tops) > maxPromptTopValues {
				tops = tops[:maxPromptTopValues]
			}
			parts := make([]string, len(tops))
			for i, tv := range tops {
				parts[i] = fmt.Sprintf("%s (%d)", tv.Value, tv.Count)
			}
			fmt.Fprintf(b, ", top: %s", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	if truncated > 0 {
		fmt.Fprintf(b, "- ... and %d more columns\n", truncated)
	}
}

// formatStat renders a summary statistic compactly with stable precision.
func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
