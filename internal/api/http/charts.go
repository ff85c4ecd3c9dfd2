package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/charts"
	perrors "github.com/plotforge/plotforge/internal/errors"
	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/generate"
)

// GenerateRequest is the on-demand generation request body. ChartTypes
// accepts either the "all" sentinel or an explicit list of type names.
type GenerateRequest struct {
	XAxis      string          `json:"x_axis"`
	YAxis      string          `json:"y_axis"`
	ChartTypes json.RawMessage `json:"chart_types"`
	Theme      string          `json:"theme"`
}

// GenerateResponse mirrors the orchestrator's result.
type GenerateResponse struct {
	ChartsGenerated bool          `json:"charts_generated"`
	NewlyGenerated  int           `json:"newly_generated"`
	AlreadyExisting int           `json:"already_existing"`
	Ineligible      []string      `json:"ineligible,omitempty"`
	Failures        []failureView `json:"failures,omitempty"`
	Charts          []chartView   `json:"charts"`
	Message         string        `json:"message"`
}

// failureView reports one spec whose render failed.
type failureView struct {
	ChartType string `json:"chart_type"`
	XColumn   string `json:"x_column,omitempty"`
	YColumn   string `json:"y_column,omitempty"`
	Error     string `json:"error"`
}

// chartTypeNames decodes the chart_types field: a JSON string, a JSON
// array of strings, or absent.
func chartTypeNames(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	return nil, perrors.NewValidationError(perrors.CodeInvalidChartType,
		"chart_types must be \"all\" or a list of chart type names")
}

// handleGenerate runs one on-demand generation request against a session.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var body GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, perrors.NewValidationError(perrors.CodeNoPlotTypeSelected,
			fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	names, err := chartTypeNames(body.ChartTypes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	requested, err := generate.ParseRequestedTypes(names)
	if err != nil {
		writeError(w, r, err)
		return
	}

	theme, ok := charts.ParseTheme(body.Theme)
	if !ok {
		writeError(w, r, perrors.NewValidationError(perrors.CodeInvalidTheme,
			fmt.Sprintf("unknown theme %q", body.Theme)))
		return
	}
	if theme == "" {
		theme = charts.Theme(s.cfg.Render.DefaultTheme)
	}

	res, err := s.generator.Generate(r.Context(), generate.Request{
		SessionID: sessionID,
		XAxis:     body.XAxis,
		YAxis:     body.YAxis,
		Types:     requested,
		Theme:     theme,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if s.stats != nil {
		s.stats.RecordDedupSkips(res.AlreadyExisting)
		s.stats.RecordRenderFailures(len(res.Failures))
	}
	if err := s.catalog.TouchSession(r.Context(), sessionID, time.Now()); err != nil {
		// A stale last_active_at only hastens retention; not worth
		// failing a successful generation over.
		log.Printf("[WARN] api: failed to touch session %s: %v", sessionID, err)
	}

	writeJSON(w, http.StatusOK, toGenerateResponse(res))
}

func toGenerateResponse(res *generate.Result) GenerateResponse {
	out := GenerateResponse{
		ChartsGenerated: res.ChartsGenerated,
		NewlyGenerated:  res.NewlyGenerated,
		AlreadyExisting: res.AlreadyExisting,
		Charts:          toChartViews(res.Charts),
		Message:         res.Message,
	}
	for _, t := range res.Ineligible {
		out.Ineligible = append(out.Ineligible, string(t))
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, failureView{
			ChartType: string(f.Spec.Type),
			XColumn:   f.Spec.X,
			YColumn:   f.Spec.Y,
			Error:     f.Err.Error(),
		})
	}
	return out
}

// handleListCharts serves a session's chart library in append order.
func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	rec, _ := s.getSession(w, r)
	if rec == nil {
		return
	}
	recs, err := s.catalog.ListCharts(r.Context(), rec.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": rec.SessionID,
		"count":      len(recs),
		"charts":     toChartViews(recs),
	})
}

// handleGetChart serves a single chart record by ID.
func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.findChart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toChartView(rec))
}

// handleFigure serves a chart's figure document, through the read cache
// when one is wired.
func (s *Server) handleFigure(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.findChart(w, r)
	if !ok {
		return
	}

	var data []byte
	var err error
	if s.figures != nil {
		data, err = s.figures.Fetch(r.Context(), s.store, rec.FigurePath)
	} else {
		data, err = s.store.Get(r.Context(), rec.FigurePath)
	}
	if err != nil {
		writeError(w, r, perrors.NewStorageError(perrors.CodeDownloadFailed,
			fmt.Sprintf("failed to load figure for chart %s", rec.ChartID), err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleRemoveChart deletes a chart record and its figure. The spec key
// becomes regenerable the moment the row is gone.
func (s *Server) handleRemoveChart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	chartID := r.PathValue("chartID")

	rec, err := s.catalog.RemoveChart(r.Context(), sessionID, chartID)
	if err != nil {
		if errors.Is(err, catalog.ErrChartNotFound) {
			writeError(w, r, perrors.NewNotFoundError(perrors.CodeChartNotFound,
				fmt.Sprintf("chart %s not found in session %s", chartID, sessionID)))
			return
		}
		writeError(w, r, err)
		return
	}

	if err := s.store.Delete(r.Context(), rec.FigurePath); err != nil {
		// The record is gone, so the chart is regenerable either way;
		// the leftover object is orphan GC's to collect.
		log.Printf("[WARN] api: failed to delete figure %s: %v", rec.FigurePath, err)
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:      events.ChartRemoved,
			SessionID: sessionID,
			ChartID:   chartID,
			ChartType: rec.ChartType,
			Path:      rec.FigurePath,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":  true,
		"chart_id": chartID,
	})
}

// handleInsights serves the AI dataset summary, cached per prompt hash.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		writeError(w, r, perrors.NewInsightsError(perrors.CodeInsightsUnavailable,
			"insights service not configured", nil))
		return
	}
	sessionID := r.PathValue("id")
	force := r.URL.Query().Get("force") == "true"

	insight, err := s.insights.ForSession(r.Context(), sessionID, force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

// findChart loads the chart named by the {chartID} path segment, writing
// the error response itself on failure.
func (s *Server) findChart(w http.ResponseWriter, r *http.Request) (*catalog.ChartRecord, bool) {
	chartID := r.PathValue("chartID")
	rec, err := s.catalog.FindChart(r.Context(), chartID)
	if err != nil {
		if errors.Is(err, catalog.ErrChartNotFound) {
			writeError(w, r, perrors.NewNotFoundError(perrors.CodeChartNotFound,
				fmt.Sprintf("chart %s not found", chartID)))
			return nil, false
		}
		writeError(w, r, err)
		return nil, false
	}
	return rec, true
}
