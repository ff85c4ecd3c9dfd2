package retention

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/storage"
	"github.com/plotforge/plotforge/pkg/types"
)

type testEnv struct {
	cat   *catalog.SQLiteCatalog
	store *storage.LocalStorage
}

func setupEnv(t *testing.T) *testEnv {
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

	return &testEnv{cat: cat, store: store}
}

// seedSession creates a catalog row plus its snapshot, profile, and one
// figure object so prefix deletion has real artifacts to remove.
func seedSession(t *testing.T, env *testEnv, sessionID string, lastActive time.Time) {
	t.Helper()
	ctx := context.Background()

	snapshotPath := storage.SnapshotPath(sessionID)
	figurePath := storage.FigurePath(sessionID, "chart-1")

	rec := &catalog.SessionRecord{
		SessionID:    sessionID,
		DatasetName:  "sample.csv",
		RowCount:     100,
		ColumnCount:  2,
		SnapshotPath: snapshotPath,
		CreatedAt:    lastActive,
		LastActiveAt: lastActive,
	}
	if err := rec.SetColumns([]types.Column{
		{Name: "price", Kind: types.KindNumeric},
		{Name: "city", Kind: types.KindCategorical},
	}); err != nil {
		t.Fatalf("failed to set columns: %v", err)
	}
	if err := env.cat.CreateSession(ctx, rec); err != nil {
		t.Fatalf("failed to create session %s: %v", sessionID, err)
	}

	chart := &catalog.ChartRecord{
		ChartID:    "chart-1",
		SessionID:  sessionID,
		ChartType:  "scatter",
		XColumn:    "price",
		YColumn:    "city",
		Theme:      "light",
		SpecKey:    sessionID + "|scatter|price|city|light",
		KeyHash:    1,
		FigurePath: figurePath,
		CreatedAt:  lastActive,
	}
	if err := env.cat.AppendChart(ctx, chart); err != nil {
		t.Fatalf("failed to append chart: %v", err)
	}

	for _, obj := range []string{snapshotPath, storage.ProfilePath(sessionID), figurePath} {
		if err := env.store.Put(ctx, obj, []byte(`{"seed":true}`)); err != nil {
			t.Fatalf("failed to seed object %s: %v", obj, err)
		}
	}
}

func sessionObjects(t *testing.T, env *testEnv, sessionID string) []string {
	t.Helper()
	objects, err := env.store.ListObjects(context.Background(), storage.SessionPrefix(sessionID))
	if err != nil {
		t.Fatalf("failed to list objects: %v", err)
	}
	return objects
}

func TestSweepDeletesIdleSessions(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	seedSession(t, env, "sess-old", time.Now().Add(-2*time.Hour))
	seedSession(t, env, "sess-fresh", time.Now())

	cfg := DefaultConfig()
	cfg.MaxIdle = time.Hour
	d := NewDaemon(cfg, env.cat, env.store, nil)

	d.RunOnce(ctx)

	if _, err := env.cat.GetSession(ctx, "sess-old"); !errors.Is(err, catalog.ErrSessionNotFound) {
		t.Errorf("expected idle session deleted, got %v", err)
	}
	if _, err := env.cat.GetSession(ctx, "sess-fresh"); err != nil {
		t.Errorf("fresh session should survive: %v", err)
	}
	if objects := sessionObjects(t, env, "sess-old"); len(objects) != 0 {
		t.Errorf("expected artifacts of sess-old removed, found %v", objects)
	}
	if objects := sessionObjects(t, env, "sess-fresh"); len(objects) != 3 {
		t.Errorf("expected 3 artifacts for sess-fresh, found %v", objects)
	}
}

func TestSweepDisabledWhenMaxIdleZero(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	seedSession(t, env, "sess-old", time.Now().Add(-48*time.Hour))

	d := NewDaemon(DefaultConfig(), env.cat, env.store, nil)
	d.RunOnce(ctx)

	if _, err := env.cat.GetSession(ctx, "sess-old"); err != nil {
		t.Errorf("session should survive with retention disabled: %v", err)
	}
}

func TestSweepHonorsLimit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	base := time.Now().Add(-10 * time.Hour)
	for i := 0; i < 3; i++ {
		seedSession(t, env, fmt.Sprintf("sess-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	cfg := DefaultConfig()
	cfg.MaxIdle = time.Hour
	cfg.SweepLimit = 2
	d := NewDaemon(cfg, env.cat, env.store, nil)

	deleted, err := d.sweepIdle(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deletions, got %d", deleted)
	}

	// Oldest first: sess-0 and sess-1 go, sess-2 survives until the next sweep.
	if _, err := env.cat.GetSession(ctx, "sess-2"); err != nil {
		t.Errorf("sess-2 should survive this sweep: %v", err)
	}
	for _, id := range []string{"sess-0", "sess-1"} {
		if _, err := env.cat.GetSession(ctx, id); !errors.Is(err, catalog.ErrSessionNotFound) {
			t.Errorf("expected %s deleted, got %v", id, err)
		}
	}
}

func TestDeleteSessionPublishesEvent(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	seedSession(t, env, "sess-1", time.Now())

	bus := events.NewBus(4)
	ch := bus.SubscribeAutoID()
	d := NewDaemon(DefaultConfig(), env.cat, env.store, bus)

	if err := d.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != events.SessionDeleted || ev.SessionID != "sess-1" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("SessionDeleted event not received")
	}

	if err := d.DeleteSession(ctx, "sess-1"); !errors.Is(err, catalog.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on repeat delete, got %v", err)
	}
}

func TestOrphanCollectionRespectsGrace(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	orphan := "sessions/sess-gone/charts/stale.json"
	if err := env.store.Put(ctx, orphan, []byte(`{}`)); err != nil {
		t.Fatalf("failed to seed orphan: %v", err)
	}

	cfg := DefaultConfig()
	cfg.OrphanAge = time.Hour
	d := NewDaemon(cfg, env.cat, env.store, nil)

	// Inside the grace period the object is tracked but kept.
	d.RunOnce(ctx)
	d.RunOnce(ctx)

	exists, err := env.store.Exists(ctx, orphan)
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if !exists {
		t.Fatal("orphan deleted before grace period elapsed")
	}
	if d.orphans.tracked() != 1 {
		t.Errorf("expected 1 tracked orphan, got %d", d.orphans.tracked())
	}

	report := d.LastReport()
	if report == nil || len(report.OrphanedObjects) != 1 {
		t.Fatalf("expected report with 1 orphan, got %+v", report)
	}
}

func TestOrphanCollectionDeletesAgedObjects(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	orphan := "sessions/sess-gone/dataset.csv.sz"
	if err := env.store.Put(ctx, orphan, []byte("stale")); err != nil {
		t.Fatalf("failed to seed orphan: %v", err)
	}

	cfg := DefaultConfig()
	cfg.OrphanAge = 20 * time.Millisecond
	d := NewDaemon(cfg, env.cat, env.store, nil)

	d.RunOnce(ctx)
	time.Sleep(40 * time.Millisecond)
	d.RunOnce(ctx)

	exists, err := env.store.Exists(ctx, orphan)
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if exists {
		t.Fatal("aged orphan should have been deleted")
	}
	if d.orphans.tracked() != 0 {
		t.Errorf("expected tracking table drained, got %d", d.orphans.tracked())
	}
}

func TestOrphanTrackingForgetsReferencedPaths(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// The snapshot object lands before its catalog row, mimicking an
	// upload caught mid-flight by a sweep.
	snapshotPath := storage.SnapshotPath("sess-1")
	if err := env.store.Put(ctx, snapshotPath, []byte("snapshot")); err != nil {
		t.Fatalf("failed to put snapshot: %v", err)
	}

	cfg := DefaultConfig()
	cfg.OrphanAge = time.Hour
	d := NewDaemon(cfg, env.cat, env.store, nil)

	d.RunOnce(ctx)
	if d.orphans.tracked() != 1 {
		t.Fatalf("expected snapshot tracked as orphan, got %d", d.orphans.tracked())
	}

	// The upload commits; the same path is now referenced.
	rec := &catalog.SessionRecord{
		SessionID:    "sess-1",
		DatasetName:  "sample.csv",
		SnapshotPath: snapshotPath,
		CreatedAt:    time.Now(),
		LastActiveAt: time.Now(),
	}
	if err := rec.SetColumns([]types.Column{{Name: "price", Kind: types.KindNumeric}}); err != nil {
		t.Fatalf("failed to set columns: %v", err)
	}
	if err := env.cat.CreateSession(ctx, rec); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	d.RunOnce(ctx)
	if d.orphans.tracked() != 0 {
		t.Errorf("expected tracking table cleared, got %d", d.orphans.tracked())
	}

	exists, err := env.store.Exists(ctx, snapshotPath)
	if err != nil {
		t.Fatalf("exists check failed: %v", err)
	}
	if !exists {
		t.Fatal("referenced snapshot must not be deleted")
	}
}

func TestReconcileReportsDanglingRecords(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	seedSession(t, env, "sess-1", time.Now())
	if err := env.store.Delete(ctx, storage.FigurePath("sess-1", "chart-1")); err != nil {
		t.Fatalf("failed to delete figure: %v", err)
	}

	d := NewDaemon(DefaultConfig(), env.cat, env.store, nil)
	report, err := d.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if len(report.DanglingCharts) != 1 {
		t.Fatalf("expected 1 dangling chart, got %+v", report.DanglingCharts)
	}
	if report.DanglingCharts[0].ChartID != "chart-1" {
		t.Errorf("wrong dangling chart: %+v", report.DanglingCharts[0])
	}
	if !report.HasIssues() {
		t.Error("report should flag issues")
	}
	if got := d.LastReport(); got != report {
		t.Error("LastReport should return the most recent report")
	}
}

func TestDaemonStartStop(t *testing.T) {
	env := setupEnv(t)

	d := NewDaemon(DefaultConfig(), env.cat, env.store, nil)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Error("second start should fail")
	}
	if err := d.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("repeat stop should be a no-op: %v", err)
	}
}

func TestStartJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := startJitter(time.Minute)
		if j < 0 || j >= 15*time.Second {
			t.Fatalf("jitter %v outside [0, 15s)", j)
		}
	}
	if j := startJitter(0); j != 0 {
		t.Errorf("zero interval should yield zero jitter, got %v", j)
	}
}
