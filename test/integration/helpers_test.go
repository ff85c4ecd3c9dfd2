// Package integration provides end-to-end tests that run the full
// Plotforge pipeline against a temp catalog and local object storage.
package integration

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/dataset"
	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/generate"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/internal/render"
	"github.com/plotforge/plotforge/internal/storage"
)

const fixtureCSV = `age,income,city,active
25,50000,austin,true
32,64000,boston,false
41,72000,austin,true
29,58000,chicago,true
37,69000,austin,false
44,81000,boston,true
`

type env struct {
	cat   *catalog.SQLiteCatalog
	store *storage.LocalStorage
	bus   *events.Bus
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tmpDir := t.TempDir()

	cat, err := catalog.NewCatalog(filepath.Join(tmpDir, "catalog.db"))
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	store, err := storage.NewLocalStorage(filepath.Join(tmpDir, "objects"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	return &env{cat: cat, store: store, bus: events.NewBus(64)}
}

// orchestrator builds the production pipeline over the env.
func (e *env) orchestrator() *generate.Orchestrator {
	renderer := render.NewRenderer(e.store, render.DefaultOptions())
	return generate.NewOrchestrator(e.cat, e.store, renderer, e.bus, generate.DefaultOptions())
}

// ingest profiles fixtureCSV, snapshots it, and creates the session.
func (e *env) ingest(t *testing.T, sessionID string) (*profile.DatasetProfile, *profile.Table) {
	t.Helper()
	ctx := context.Background()

	prof, table, err := profile.Analyze(strings.NewReader(fixtureCSV), "people.csv", profile.Options{})
	if err != nil {
		t.Fatalf("failed to profile fixture: %v", err)
	}
	meta, err := dataset.Write(ctx, e.store, sessionID, table)
	if err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	now := time.Now()
	rec := &catalog.SessionRecord{
		SessionID:        sessionID,
		DatasetName:      "people.csv",
		RowCount:         int64(meta.Rows),
		ColumnCount:      len(meta.Columns),
		SnapshotPath:     meta.Path,
		SnapshotChecksum: meta.Checksum,
		SnapshotBytes:    meta.EncodedBytes,
		CreatedAt:        now,
		LastActiveAt:     now,
	}
	if err := rec.SetColumns(meta.Columns); err != nil {
		t.Fatalf("failed to set columns: %v", err)
	}
	if err := rec.SetProfile(prof); err != nil {
		t.Fatalf("failed to set profile: %v", err)
	}
	if err := e.cat.CreateSession(ctx, rec); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return prof, table
}

// chartKeys returns the spec keys currently in the session's library.
func (e *env) chartKeys(t *testing.T, sessionID string) map[string]struct{} {
	t.Helper()
	keys, err := e.cat.ChartKeys(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("failed to list chart keys: %v", err)
	}
	return keys
}

// generateScatter is the smallest useful on-demand request against the
// fixture's numeric pair.
func generateScatter(sessionID string) generate.Request {
	return generate.Request{
		SessionID: sessionID,
		XAxis:     "age",
		YAxis:     "income",
		Types:     only(charts.TypeScatter),
		Theme:     charts.ThemeLight,
	}
}

func allOf() generate.RequestedTypes {
	return generate.RequestedTypes{All: true}
}

func only(types ...charts.ChartType) generate.RequestedTypes {
	return generate.RequestedTypes{Types: types}
}
