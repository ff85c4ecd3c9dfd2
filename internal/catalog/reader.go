package catalog

import (
	"context"
	"time"
)

// Reader is the read-only interface used by the gallery handlers, the
// generation orchestrator's duplicate check, and the insights builder.
type Reader interface {
	// GetSession retrieves a single session by ID.
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)

	// ListSessions returns sessions ordered by creation time, newest
	// first. A limit of 0 returns all sessions.
	ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error)

	// GetChart retrieves a single chart by session and chart ID.
	GetChart(ctx context.Context, sessionID, chartID string) (*ChartRecord, error)

	// FindChart retrieves a chart by ID alone. Chart IDs are ULIDs,
	// unique across sessions, so no session qualifier is needed.
	FindChart(ctx context.Context, chartID string) (*ChartRecord, error)

	// ListCharts returns all charts of a session in append order.
	ListCharts(ctx context.Context, sessionID string) ([]*ChartRecord, error)

	// ChartKeys returns the set of spec keys present in a session's library.
	ChartKeys(ctx context.Context, sessionID string) (map[string]struct{}, error)

	// HasChart reports whether the session already holds the spec key.
	// keyHash narrows the lookup; equality is decided on the full key.
	HasChart(ctx context.Context, sessionID string, keyHash uint64, specKey string) (bool, error)

	// CountCharts returns the number of charts in a session's library.
	CountCharts(ctx context.Context, sessionID string) (int64, error)

	// GetInsight retrieves a cached insight. Returns (nil, nil) on cache miss.
	GetInsight(ctx context.Context, sessionID, promptHash string) (*InsightRecord, error)

	// IdleSessions returns sessions idle since before cutoff, oldest first.
	IdleSessions(ctx context.Context, cutoff time.Time, limit int) ([]*SessionRecord, error)

	// SessionCount returns the total number of sessions.
	SessionCount(ctx context.Context) (int64, error)
}
