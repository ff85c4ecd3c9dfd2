// Package server coordinates graceful shutdown: signal handling,
// in-flight request draining, and the middleware that rejects new work
// once draining has begun.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// ShutdownConfig holds the timeouts for a graceful stop.
type ShutdownConfig struct {
	// ShutdownTimeout bounds the whole stop sequence.
	ShutdownTimeout time.Duration

	// DrainTimeout bounds the wait for in-flight requests. A render
	// fan-out can hold a request open for a while, so this is longer
	// than a typical API drain.
	DrainTimeout time.Duration
}

// DefaultShutdownConfig returns the default timeouts.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		ShutdownTimeout: 30 * time.Second,
		DrainTimeout:    15 * time.Second,
	}
}

// ShutdownManager tracks in-flight HTTP requests and runs the drain when
// the process is asked to stop. Upload and generate handlers write
// figures and catalog rows mid-request; draining lets those commits
// finish instead of leaving orphans for the retention daemon.
type ShutdownManager struct {
	config ShutdownConfig

	stopping atomic.Bool
	inFlight atomic.Int64

	once   sync.Once
	stopCh chan struct{}
}

// NewShutdownManager creates a manager with the given timeouts; zero
// values fall back to the defaults.
func NewShutdownManager(config ShutdownConfig) *ShutdownManager {
	def := DefaultShutdownConfig()
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = def.DrainTimeout
	}
	return &ShutdownManager{
		config: config,
		stopCh: make(chan struct{}),
	}
}

// ListenForSignals blocks until SIGTERM, SIGINT, context cancellation,
// or an explicit Shutdown call, then runs the drain.
func (sm *ShutdownManager) ListenForSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sm.Shutdown(ctx, fmt.Sprintf("signal %v", sig))
	case <-ctx.Done():
		return sm.Shutdown(ctx, "context cancelled")
	case <-sm.stopCh:
		return nil
	}
}

// Shutdown flips the manager into stopping mode and waits for in-flight
// requests to drain. Safe to call more than once; later calls return nil
// without waiting again.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	var err error
	sm.once.Do(func() {
		log.Printf("Shutting down (%s)", reason)
		sm.stopping.Store(true)
		close(sm.stopCh)

		stopCtx, cancel := context.WithTimeout(ctx, sm.config.ShutdownTimeout)
		defer cancel()
		err = sm.drain(stopCtx)
	})
	return err
}

// drain polls the in-flight counter until it reaches zero or the drain
// timeout passes.
func (sm *ShutdownManager) drain(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, sm.config.DrainTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		remaining := sm.inFlight.Load()
		if remaining == 0 {
			return nil
		}
		select {
		case <-drainCtx.Done():
			return fmt.Errorf("shutdown: %d requests still in flight after drain timeout", remaining)
		case <-ticker.C:
		}
	}
}

// IsShuttingDown reports whether the stop sequence has begun.
func (sm *ShutdownManager) IsShuttingDown() bool {
	return sm.stopping.Load()
}

// InFlightCount returns the number of requests currently being served.
func (sm *ShutdownManager) InFlightCount() int64 {
	return sm.inFlight.Load()
}

// ShutdownCh is closed when the stop sequence begins.
func (sm *ShutdownManager) ShutdownCh() <-chan struct{} {
	return sm.stopCh
}

// track admits a request unless the manager is stopping.
func (sm *ShutdownManager) track() bool {
	if sm.stopping.Load() {
		return false
	}
	sm.inFlight.Add(1)
	// Re-check after incrementing so a request racing the stop flag
	// does not slip past the drain.
	if sm.stopping.Load() {
		sm.inFlight.Add(-1)
		return false
	}
	return true
}

func (sm *ShutdownManager) untrack() {
	sm.inFlight.Add(-1)
}

// ShutdownMiddleware counts in-flight requests and answers 503 once the
// drain has started.
func ShutdownMiddleware(sm *ShutdownManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sm.track() {
				w.Header().Set("Connection", "close")
				http.Error(w, "Service Unavailable - Shutting Down", http.StatusServiceUnavailable)
				return
			}
			defer sm.untrack()

			next.ServeHTTP(w, r)
		})
	}
}
