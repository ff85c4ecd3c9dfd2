package http

import (
	"net/http"
	"time"

	"github.com/plotforge/plotforge/internal/cache"
	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/config"
	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/generate"
	"github.com/plotforge/plotforge/internal/insights"
	"github.com/plotforge/plotforge/internal/observability"
	"github.com/plotforge/plotforge/internal/retention"
	"github.com/plotforge/plotforge/internal/storage"
)

// Server holds the collaborators behind the HTTP API. Every handler is a
// method on Server; Routes assembles them into a mux behind the default
// middleware chain.
type Server struct {
	cfg       *config.Config
	catalog   catalog.Catalog
	store     storage.ObjectStorage
	generator *generate.Orchestrator
	insights  *insights.Service
	figures   *cache.FigureCache
	stats     *observability.Stats
	retention *retention.Daemon
	bus       *events.Bus
}

// NewServer wires the API over its collaborators. insights, figures,
// stats, retention, and bus may be nil; the corresponding endpoints
// degrade gracefully.
func NewServer(
	cfg *config.Config,
	cat catalog.Catalog,
	store storage.ObjectStorage,
	generator *generate.Orchestrator,
	insightSvc *insights.Service,
	figures *cache.FigureCache,
	stats *observability.Stats,
	ret *retention.Daemon,
	bus *events.Bus,
) *Server {
	return &Server{
		cfg:       cfg,
		catalog:   cat,
		store:     store,
		generator: generator,
		insights:  insightSvc,
		figures:   figures,
		stats:     stats,
		retention: ret,
		bus:       bus,
	}
}

// Routes returns the API handler with middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/upload", s.handleUpload)
	mux.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/columns", s.handleColumns)
	mux.HandleFunc("GET /api/v1/sessions/{id}/charts", s.handleListCharts)
	mux.HandleFunc("POST /api/v1/sessions/{id}/charts/generate", s.handleGenerate)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}/charts/{chartID}", s.handleRemoveChart)
	mux.HandleFunc("GET /api/v1/charts/{chartID}", s.handleGetChart)
	mux.HandleFunc("GET /api/v1/charts/{chartID}/figure", s.handleFigure)
	mux.HandleFunc("GET /api/v1/sessions/{id}/insights", s.handleInsights)
	mux.HandleFunc("GET /api/v1/sessions/{id}/export", s.handleExport)
	mux.HandleFunc("GET /api/v1/admin/reconcile", s.handleReconcile)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)

	return DefaultMiddleware()(mux)
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "plotforge",
		"mode":     string(s.cfg.Mode),
		"insights": s.insights != nil && s.insights.Available(),
	})
}

// handleStats serves the observability counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// handleReconcile runs a catalog/storage reconciliation and returns the
// report. The retention daemon owns the reconciliation logic; without it
// the endpoint is unavailable.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.retention == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "retention service not running", "", GetRequestID(r.Context()))
		return
	}
	report, err := s.retention.Reconcile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// chartView is the JSON shape of a chart record.
type chartView struct {
	ChartID     string    `json:"chart_id"`
	SessionID   string    `json:"session_id"`
	ChartType   string    `json:"chart_type"`
	XColumn     string    `json:"x_column,omitempty"`
	YColumn     string    `json:"y_column,omitempty"`
	Theme       string    `json:"theme"`
	Title       string    `json:"title"`
	FigurePath  string    `json:"figure_path"`
	FigureBytes int64     `json:"figure_bytes"`
	RenderMS    int64     `json:"render_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func toChartView(rec *catalog.ChartRecord) chartView {
	return chartView{
		ChartID:     rec.ChartID,
		SessionID:   rec.SessionID,
		ChartType:   rec.ChartType,
		XColumn:     rec.XColumn,
		YColumn:     rec.YColumn,
		Theme:       rec.Theme,
		Title:       rec.Title,
		FigurePath:  rec.FigurePath,
		FigureBytes: rec.FigureBytes,
		RenderMS:    rec.RenderMS,
		CreatedAt:   rec.CreatedAt,
	}
}

func toChartViews(recs []*catalog.ChartRecord) []chartView {
	views := make([]chartView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toChartView(rec))
	}
	return views
}

// sessionView is the JSON shape of a session record.
type sessionView struct {
	SessionID    string    `json:"session_id"`
	DatasetName  string    `json:"dataset_name"`
	RowCount     int64     `json:"row_count"`
	ColumnCount  int       `json:"column_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func toSessionView(rec *catalog.SessionRecord) sessionView {
	return sessionView{
		SessionID:    rec.SessionID,
		DatasetName:  rec.DatasetName,
		RowCount:     rec.RowCount,
		ColumnCount:  rec.ColumnCount,
		CreatedAt:    rec.CreatedAt,
		LastActiveAt: rec.LastActiveAt,
	}
}
