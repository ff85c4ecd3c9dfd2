package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/storage"
)

// sweepIdle deletes sessions idle beyond MaxIdle, oldest first, capped at
// SweepLimit per cycle. Returns the number of sessions deleted.
func (d *Daemon) sweepIdle(ctx context.Context) (int, error) {
	if d.config.MaxIdle <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-d.config.MaxIdle)
	idle, err := d.catalog.IdleSessions(ctx, cutoff, d.config.SweepLimit)
	if err != nil {
		return 0, fmt.Errorf("retention: failed to find idle sessions: %w", err)
	}

	deleted := 0
	for _, sess := range idle {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		if err := d.DeleteSession(ctx, sess.SessionID); err != nil {
			log.Printf("retention: failed to delete idle session %s: %v", sess.SessionID, err)
			continue
		}
		log.Printf("retention: deleted session %s (last active %s)",
			sess.SessionID, sess.LastActiveAt.Format(time.RFC3339))
		deleted++
	}

	return deleted, nil
}

// DeleteSession removes a session's catalog rows and its storage prefix.
// The catalog cascade commits first so the session stops serving; if the
// storage cleanup is then interrupted, the leftover objects surface as
// orphans and are collected on a later cycle. The HTTP delete handlers
// share this path so manual and idle deletion behave identically.
func (d *Daemon) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := d.catalog.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	prefix := storage.SessionPrefix(sessionID)
	objects, err := d.storage.ListObjects(ctx, prefix)
	if err != nil {
		return fmt.Errorf("retention: failed to list objects for session %s: %w", sessionID, err)
	}
	for _, obj := range objects {
		if err := d.storage.Delete(ctx, obj); err != nil {
			log.Printf("[WARN] retention: failed to delete object %s: %v", obj, err)
		}
	}

	if d.bus != nil {
		d.bus.Publish(events.Event{Type: events.SessionDeleted, SessionID: sessionID})
	}

	return nil
}
