// Package main implements plotforge-render, an offline tool that runs
// the full generation pipeline (profile, snapshot, eligibility, dedup,
// render) against a CSV file and writes the figures to a local directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/dataset"
	"github.com/plotforge/plotforge/internal/generate"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/internal/render"
	"github.com/plotforge/plotforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	var (
		outDir    string
		xAxis     string
		yAxis     string
		typeNames string
		themeName string
	)
	flag.StringVar(&outDir, "out", "./plotforge-out", "Output directory for figures and the catalog")
	flag.StringVar(&xAxis, "x", "", "X axis column (empty renders the upload-time chart set)")
	flag.StringVar(&yAxis, "y", "", "Y axis column")
	flag.StringVar(&typeNames, "types", "all", "Comma-separated chart types, or \"all\"")
	flag.StringVar(&themeName, "theme", "light", "Figure theme: light, dark")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: plotforge-render [options] <file.csv>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  plotforge-render data.csv\n")
		fmt.Fprintf(os.Stderr, "  plotforge-render -x age -y city -types bar_chart,box data.csv\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	theme, ok := charts.ParseTheme(themeName)
	if !ok || theme == "" {
		log.Fatalf("Unknown theme %q", themeName)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	prof, table, err := profile.Analyze(f, filepath.Base(path), profile.Options{})
	if err != nil {
		log.Fatalf("Failed to profile %s: %v", path, err)
	}

	ctx := context.Background()

	store, err := storage.NewLocalStorage(filepath.Join(outDir, "objects"))
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	cat, err := catalog.NewCatalog(filepath.Join(outDir, "catalog.db"))
	if err != nil {
		log.Fatalf("Failed to create catalog: %v", err)
	}
	defer cat.Close()

	sessionID := uuid.New().String()
	meta, err := dataset.Write(ctx, store, sessionID, table)
	if err != nil {
		log.Fatalf("Failed to write snapshot: %v", err)
	}

	now := time.Now()
	rec := &catalog.SessionRecord{
		SessionID:        sessionID,
		DatasetName:      filepath.Base(path),
		RowCount:         int64(meta.Rows),
		ColumnCount:      len(meta.Columns),
		SnapshotPath:     meta.Path,
		SnapshotChecksum: meta.Checksum,
		SnapshotBytes:    meta.EncodedBytes,
		CreatedAt:        now,
		LastActiveAt:     now,
	}
	if err := rec.SetColumns(meta.Columns); err != nil {
		log.Fatalf("Failed to encode columns: %v", err)
	}
	if err := rec.SetProfile(prof); err != nil {
		log.Fatalf("Failed to encode profile: %v", err)
	}
	if err := cat.CreateSession(ctx, rec); err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	renderer := render.NewRenderer(store, render.DefaultOptions())
	orch := generate.NewOrchestrator(cat, store, renderer, nil, generate.DefaultOptions())

	var res *generate.Result
	if xAxis == "" && yAxis == "" {
		res, err = orch.IngestCharts(ctx, sessionID, table, prof, theme)
	} else {
		var types generate.RequestedTypes
		types, err = generate.ParseRequestedTypes(strings.Split(typeNames, ","))
		if err != nil {
			log.Fatalf("Invalid chart types: %v", err)
		}
		res, err = orch.Generate(ctx, generate.Request{
			SessionID: sessionID,
			XAxis:     xAxis,
			YAxis:     yAxis,
			Types:     types,
			Theme:     theme,
		})
	}
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	fmt.Printf("%s\n", res.Message)
	for _, c := range res.Charts {
		fmt.Printf("  %-14s %-40s %s\n", c.ChartType, c.Title, filepath.Join(outDir, "objects", c.FigurePath))
	}
	for _, fail := range res.Failures {
		fmt.Printf("  FAILED %-14s %v\n", fail.Spec.Type, fail.Err)
	}
}
