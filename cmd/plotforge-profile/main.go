// Package main implements plotforge-profile, an offline tool that runs
// the column profiler over a CSV file and prints the result.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/profile"
)

func main() {
	var (
		maxRows   int
		maxUnique int
		asJSON    bool
	)
	flag.IntVar(&maxRows, "max-rows", 0, "Cap on rows read (0 = default)")
	flag.IntVar(&maxUnique, "max-unique", 0, "Unique-value ceiling for categorical columns (0 = default)")
	flag.BoolVar(&asJSON, "json", false, "Print the full profile as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: plotforge-profile [options] <file.csv>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	prof, table, err := profile.Analyze(f, path, profile.Options{
		MaxRows:              maxRows,
		CategoricalMaxUnique: maxUnique,
	})
	if err != nil {
		log.Fatalf("Failed to profile %s: %v", path, err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(prof); err != nil {
			log.Fatalf("Failed to encode profile: %v", err)
		}
		return
	}

	fmt.Printf("Dataset: %s\n", prof.DatasetName)
	fmt.Printf("Rows: %d (%d read, %d duplicates)\n", prof.TotalRows, prof.Rows, prof.DuplicateRows)
	fmt.Printf("Columns: %d\n\n", len(prof.Columns))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tKIND\tNON-NULL\tMISSING\tUNIQUE\tELIGIBLE CHARTS")
	for _, col := range prof.Columns {
		eligible := ""
		for i, t := range charts.ResolveSingle(col.Kind) {
			if i > 0 {
				eligible += ", "
			}
			eligible += string(t)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			col.Name, col.Kind, col.NonNull, col.Missing, col.Unique, eligible)
	}
	w.Flush()

	fmt.Printf("\nCleaned table: %d rows x %d columns\n", len(table.Rows), len(table.Columns))
}
