package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/plotforge/plotforge/internal/storage"
)

// ReconciliationReport contains the results of a catalog-storage reconciliation.
type ReconciliationReport struct {
	// DanglingCharts are chart records whose figure object does not exist in storage.
	DanglingCharts []DanglingChart `json:"dangling_charts,omitempty"`
	// DanglingSnapshots are sessions whose dataset snapshot is missing from storage.
	DanglingSnapshots []DanglingSnapshot `json:"dangling_snapshots,omitempty"`
	// OrphanedObjects are storage objects with no corresponding catalog record.
	OrphanedObjects []string `json:"orphaned_objects,omitempty"`
	// TotalSessions is the number of sessions checked.
	TotalSessions int `json:"total_sessions"`
	// TotalCharts is the number of chart records checked.
	TotalCharts int `json:"total_charts"`
	// TotalStorageObjects is the number of storage objects scanned.
	TotalStorageObjects int `json:"total_storage_objects"`
	// RunAt is when the reconciliation was performed.
	RunAt time.Time `json:"run_at"`
}

// DanglingChart represents a chart record pointing to a missing figure object.
type DanglingChart struct {
	SessionID  string `json:"session_id"`
	ChartID    string `json:"chart_id"`
	FigurePath string `json:"figure_path"`
}

// DanglingSnapshot represents a session whose dataset snapshot is missing.
type DanglingSnapshot struct {
	SessionID    string `json:"session_id"`
	SnapshotPath string `json:"snapshot_path"`
}

// HasIssues returns true if the report contains any dangling records or orphaned objects.
func (r *ReconciliationReport) HasIssues() bool {
	return len(r.DanglingCharts) > 0 || len(r.DanglingSnapshots) > 0 || len(r.OrphanedObjects) > 0
}

// Reconcile checks consistency between the session catalog and object storage.
// It detects dangling records (catalog references non-existent objects) and
// orphaned storage objects (objects not tracked in the catalog), which appear
// when a session delete commits but the storage cleanup is interrupted.
func Reconcile(ctx context.Context, reader Reader, store storage.ObjectStorage, storagePrefix string) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		RunAt: time.Now(),
	}

	// Step 1: Collect every object path the catalog knows about.
	sessions, err := reader.ListSessions(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("reconciliation: failed to list sessions: %w", err)
	}
	report.TotalSessions = len(sessions)

	knownPaths := make(map[string]struct{})
	for _, sess := range sessions {
		knownPaths[sess.SnapshotPath] = struct{}{}
		// The profile document is derived from the session, not recorded
		// as a separate row, so add its path explicitly.
		knownPaths[storage.ProfilePath(sess.SessionID)] = struct{}{}
	}

	// Step 2: Check each snapshot and figure for existence (dangling detection).
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		exists, err := store.Exists(ctx, sess.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("reconciliation: failed to check snapshot %s: %w", sess.SnapshotPath, err)
		}
		if !exists {
			report.DanglingSnapshots = append(report.DanglingSnapshots, DanglingSnapshot{
				SessionID:    sess.SessionID,
				SnapshotPath: sess.SnapshotPath,
			})
		}

		charts, err := reader.ListCharts(ctx, sess.SessionID)
		if err != nil {
			return nil, fmt.Errorf("reconciliation: failed to list charts for session %s: %w", sess.SessionID, err)
		}
		report.TotalCharts += len(charts)

		for _, chart := range charts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			knownPaths[chart.FigurePath] = struct{}{}

			exists, err := store.Exists(ctx, chart.FigurePath)
			if err != nil {
				return nil, fmt.Errorf("reconciliation: failed to check figure %s: %w", chart.FigurePath, err)
			}
			if !exists {
				report.DanglingCharts = append(report.DanglingCharts, DanglingChart{
					SessionID:  chart.SessionID,
					ChartID:    chart.ChartID,
					FigurePath: chart.FigurePath,
				})
			}
		}
	}

	// Step 3: List all objects in storage and find orphans.
	objects, err := store.ListObjects(ctx, storagePrefix)
	if err != nil {
		return nil, fmt.Errorf("reconciliation: failed to list storage objects: %w", err)
	}
	report.TotalStorageObjects = len(objects)

	for _, objPath := range objects {
		if _, tracked := knownPaths[objPath]; !tracked {
			report.OrphanedObjects = append(report.OrphanedObjects, objPath)
		}
	}

	return report, nil
}
