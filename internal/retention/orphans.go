package retention

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/plotforge/plotforge/internal/storage"
)

// orphanCollector deletes storage objects that no catalog record
// references. An object written by an in-flight upload looks unreferenced
// until its session row commits, so deletion waits until the object has
// stayed orphaned for the grace period.
type orphanCollector struct {
	storage storage.ObjectStorage
	grace   time.Duration

	mu        sync.Mutex
	firstSeen map[string]time.Time
}

func newOrphanCollector(store storage.ObjectStorage, grace time.Duration) *orphanCollector {
	return &orphanCollector{
		storage:   store,
		grace:     grace,
		firstSeen: make(map[string]time.Time),
	}
}

// collect deletes orphans past the grace period and refreshes the
// tracking table. Returns the number of objects deleted.
func (oc *orphanCollector) collect(ctx context.Context, orphaned []string) (int, error) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	now := time.Now()

	current := make(map[string]struct{}, len(orphaned))
	for _, path := range orphaned {
		current[path] = struct{}{}
		if _, ok := oc.firstSeen[path]; !ok {
			oc.firstSeen[path] = now
		}
	}

	// Paths the catalog references again are no longer orphans.
	for path := range oc.firstSeen {
		if _, ok := current[path]; !ok {
			delete(oc.firstSeen, path)
		}
	}

	deleted := 0
	for _, path := range orphaned {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if now.Sub(oc.firstSeen[path]) < oc.grace {
			continue
		}
		if err := oc.storage.Delete(ctx, path); err != nil {
			log.Printf("[WARN] retention: failed to delete orphan %s: %v", path, err)
			continue
		}
		delete(oc.firstSeen, path)
		deleted++
	}

	return deleted, nil
}

// tracked returns the number of orphan candidates currently inside the
// grace period.
func (oc *orphanCollector) tracked() int {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return len(oc.firstSeen)
}
