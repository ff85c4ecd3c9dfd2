// Package observability provides service counters for the stats endpoint.
package observability

import (
	"sync"
	"time"

	"github.com/plotforge/plotforge/internal/events"
)

// Stats tracks upload, render, and insight activity for the stats endpoint.
// Lifecycle counters arrive through the event bus; request-shaped counters
// (uploads, dedup skips, render failures) are recorded by the handlers that
// observe them.
type Stats struct {
	mu              sync.RWMutex
	startedAt       time.Time
	uploads         int64
	sessionsCreated int64
	sessionsDeleted int64
	chartsRemoved   int64
	rendersByType   map[string]int64
	renderFailures  int64
	dedupSkips      int64
	insightCalls    int64
	insightHits     int64
	renderCount     int64
	renderTotalMS   int64
	renderMinMS     int64
	renderMaxMS     int64
}

// LatencySummary aggregates render durations.
type LatencySummary struct {
	Count  int64   `json:"count"`
	MinMS  int64   `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  int64   `json:"max_ms"`
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	UptimeSeconds    int64            `json:"uptime_seconds"`
	Uploads          int64            `json:"uploads"`
	SessionsCreated  int64            `json:"sessions_created"`
	SessionsDeleted  int64            `json:"sessions_deleted"`
	ChartsRemoved    int64            `json:"charts_removed"`
	ChartsRendered   int64            `json:"charts_rendered"`
	RendersByType    map[string]int64 `json:"renders_by_type"`
	RenderFailures   int64            `json:"render_failures"`
	DedupSkips       int64            `json:"dedup_skips"`
	InsightCalls     int64            `json:"insight_calls"`
	InsightCacheHits int64            `json:"insight_cache_hits"`
	RenderLatency    LatencySummary   `json:"render_latency"`
}

// NewStats creates a stats recorder.
func NewStats() *Stats {
	return &Stats{
		startedAt:     time.Now(),
		rendersByType: make(map[string]int64),
	}
}

// RecordUpload counts one dataset upload attempt.
func (s *Stats) RecordUpload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
}

// RecordSessionCreated counts one created session.
func (s *Stats) RecordSessionCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionsCreated++
}

// RecordSessionDeleted counts one deleted session.
func (s *Stats) RecordSessionDeleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionsDeleted++
}

// RecordChartRemoved counts one removed chart.
func (s *Stats) RecordChartRemoved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chartsRemoved++
}

// RecordRender counts one committed chart render and folds its duration
// into the latency aggregate. This method is O(1) and thread-safe.
func (s *Stats) RecordRender(chartType string, renderMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rendersByType[chartType]++
	if s.renderCount == 0 || renderMS < s.renderMinMS {
		s.renderMinMS = renderMS
	}
	if renderMS > s.renderMaxMS {
		s.renderMaxMS = renderMS
	}
	s.renderCount++
	s.renderTotalMS += renderMS
}

// RecordRenderFailures counts failed render attempts.
func (s *Stats) RecordRenderFailures(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderFailures += int64(n)
}

// RecordDedupSkips counts requested charts skipped as already present.
func (s *Stats) RecordDedupSkips(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dedupSkips += int64(n)
}

// RecordInsight counts one answered insight request.
func (s *Stats) RecordInsight(cacheHit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insightCalls++
	if cacheHit {
		s.insightHits++
	}
}

// Snapshot returns a copy of the counters. The per-type map is copied so
// callers cannot mutate live state.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[string]int64, len(s.rendersByType))
	for k, v := range s.rendersByType {
		byType[k] = v
	}

	lat := LatencySummary{
		Count: s.renderCount,
		MinMS: s.renderMinMS,
		MaxMS: s.renderMaxMS,
	}
	if s.renderCount > 0 {
		lat.MeanMS = float64(s.renderTotalMS) / float64(s.renderCount)
	}

	return Snapshot{
		UptimeSeconds:    int64(time.Since(s.startedAt).Seconds()),
		Uploads:          s.uploads,
		SessionsCreated:  s.sessionsCreated,
		SessionsDeleted:  s.sessionsDeleted,
		ChartsRemoved:    s.chartsRemoved,
		ChartsRendered:   s.renderCount,
		RendersByType:    byType,
		RenderFailures:   s.renderFailures,
		DedupSkips:       s.dedupSkips,
		InsightCalls:     s.insightCalls,
		InsightCacheHits: s.insightHits,
		RenderLatency:    lat,
	}
}

// AttachBus subscribes the recorder to the session event bus. The returned
// stop function releases the subscription and waits for the recorder loop.
func (s *Stats) AttachBus(bus *events.Bus) func() {
	sub := bus.Subscribe("stats-recorder", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sub.Ch {
			switch ev.Type {
			case events.SessionCreated:
				s.RecordSessionCreated()
			case events.ChartAppended:
				s.RecordRender(ev.ChartType, ev.RenderMS)
			case events.ChartRemoved:
				s.RecordChartRemoved()
			case events.SessionDeleted:
				s.RecordSessionDeleted()
			case events.InsightsReady:
				s.RecordInsight(ev.CacheHit)
			}
		}
	}()
	return func() {
		bus.Unsubscribe(sub.ID)
		<-done
	}
}
