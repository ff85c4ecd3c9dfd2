// Package retention provides the background daemon that deletes idle
// sessions and garbage-collects storage objects no catalog record
// references.
package retention

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/storage"
)

// sessionRoot is the storage prefix scanned during reconciliation. It
// matches the layout produced by storage.SessionPrefix.
const sessionRoot = "sessions/"

// Config holds configuration for the retention daemon.
type Config struct {
	// CheckInterval is how often the daemon sweeps for idle sessions
	// and reconciles storage.
	CheckInterval time.Duration

	// MaxIdle is how long a session may go unaccessed before it is
	// deleted. Zero disables idle-session deletion; reconciliation and
	// orphan collection still run.
	MaxIdle time.Duration

	// SweepLimit caps the number of sessions deleted per sweep.
	SweepLimit int

	// OrphanAge is how long a storage object must stay unreferenced
	// before the orphan collector may delete it.
	OrphanAge time.Duration
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 15 * time.Minute,
		MaxIdle:       0,
		SweepLimit:    50,
		OrphanAge:     24 * time.Hour,
	}
}

// Daemon manages background session retention and storage reconciliation.
type Daemon struct {
	config  Config
	catalog catalog.Catalog
	storage storage.ObjectStorage
	bus     *events.Bus
	orphans *orphanCollector

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	reportMu   sync.RWMutex
	lastReport *catalog.ReconciliationReport
}

// NewDaemon creates a new retention daemon. bus may be nil when no
// subscriber cares about deletion events.
func NewDaemon(config Config, cat catalog.Catalog, store storage.ObjectStorage, bus *events.Bus) *Daemon {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 15 * time.Minute
	}
	if config.SweepLimit <= 0 {
		config.SweepLimit = 50
	}

	return &Daemon{
		config:  config,
		catalog: cat,
		storage: store,
		bus:     bus,
		orphans: newOrphanCollector(store, config.OrphanAge),
	}
}

// Start begins the retention loop. It runs until the context is cancelled
// or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("retention: daemon is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	return nil
}

// Stop gracefully stops the retention daemon.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.cancel()
	<-d.done
	d.running = false
	return nil
}

// run is the main retention loop. The first sweep is delayed by a random
// fraction of the check interval so restarting replicas do not hit the
// catalog in lockstep.
func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	select {
	case <-ctx.Done():
		return
	case <-time.After(startJitter(d.config.CheckInterval)):
	}
	d.runOnce(ctx)

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

// runOnce performs a single retention cycle: delete idle sessions, then
// reconcile storage against the catalog and collect aged orphans.
func (d *Daemon) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	deleted, err := d.sweepIdle(ctx)
	if err != nil {
		log.Printf("retention: idle sweep failed: %v", err)
	}
	if deleted > 0 {
		log.Printf("retention: deleted %d idle sessions", deleted)
		// Bulk deletes shift table shapes; refresh planner statistics.
		if err := d.catalog.RunAnalyze(ctx); err != nil {
			log.Printf("[WARN] retention: failed to refresh catalog statistics: %v", err)
		}
	}

	if ctx.Err() != nil {
		return
	}
	if _, err := d.Reconcile(ctx); err != nil {
		log.Printf("retention: reconciliation failed: %v", err)
	}
}

// RunOnce performs a single retention cycle (useful for testing).
func (d *Daemon) RunOnce(ctx context.Context) {
	d.runOnce(ctx)
}

// Reconcile runs a catalog-storage consistency check, collects orphaned
// objects past the grace period, and retains the report for the admin
// endpoint. The returned report reflects the state before collection.
func (d *Daemon) Reconcile(ctx context.Context) (*catalog.ReconciliationReport, error) {
	report, err := catalog.Reconcile(ctx, d.catalog, d.storage, sessionRoot)
	if err != nil {
		return nil, err
	}

	removed, err := d.orphans.collect(ctx, report.OrphanedObjects)
	if removed > 0 {
		log.Printf("retention: deleted %d orphaned objects", removed)
	}
	if err != nil {
		return nil, err
	}

	d.reportMu.Lock()
	d.lastReport = report
	d.reportMu.Unlock()

	return report, nil
}

// LastReport returns the most recent reconciliation report, or nil when
// no cycle has completed yet.
func (d *Daemon) LastReport() *catalog.ReconciliationReport {
	d.reportMu.RLock()
	defer d.reportMu.RUnlock()
	return d.lastReport
}

// startJitter returns a random delay in [0, interval/4).
func startJitter(interval time.Duration) time.Duration {
	quarter := int64(interval) / 4
	if quarter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(quarter))
}
