package http

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/dataset"
	perrors "github.com/plotforge/plotforge/internal/errors"
	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/internal/storage"
)

// UploadResponse summarizes a completed upload: the new session plus the
// upload-time chart sweep.
type UploadResponse struct {
	Session        sessionView `json:"session"`
	Rows           int64       `json:"rows"`
	Columns        []columnView `json:"columns"`
	ChartsRendered int          `json:"charts_rendered"`
	Charts         []chartView  `json:"charts"`
}

// columnView is the JSON shape of a profiled column, served to axis pickers.
type columnView struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// handleUpload ingests a CSV: profile it, snapshot it, create the session,
// and render the upload-time chart set.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Profile.MaxUploadBytes)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, perrors.NewValidationError(perrors.CodeUploadTooLarge,
				fmt.Sprintf("upload exceeds the %d byte limit", s.cfg.Profile.MaxUploadBytes)))
			return
		}
		writeError(w, r, perrors.NewValidationError(perrors.CodeEmptyDataset,
			"request is not a valid multipart upload"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, perrors.NewValidationError(perrors.CodeEmptyDataset,
			"multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	theme, ok := charts.ParseTheme(r.FormValue("theme"))
	if !ok {
		writeError(w, r, perrors.NewValidationError(perrors.CodeInvalidTheme,
			fmt.Sprintf("unknown theme %q", r.FormValue("theme"))))
		return
	}
	if theme == "" {
		theme = charts.Theme(s.cfg.Render.DefaultTheme)
	}

	prof, table, err := profile.Analyze(file, header.Filename, profile.Options{
		MaxRows:              s.cfg.Profile.MaxRows,
		CategoricalMaxUnique: s.cfg.Profile.CategoricalMaxUnique,
		TopValues:            s.cfg.Profile.TopValues,
	})
	if err != nil {
		if errors.Is(err, profile.ErrEmptyDataset) || errors.Is(err, profile.ErrNoColumns) {
			writeError(w, r, perrors.NewValidationError(perrors.CodeEmptyDataset, err.Error()))
			return
		}
		writeError(w, r, perrors.NewValidationError(perrors.CodeEmptyDataset,
			fmt.Sprintf("failed to parse CSV: %v", err)))
		return
	}

	sessionID := uuid.New().String()

	meta, err := dataset.Write(ctx, s.store, sessionID, table)
	if err != nil {
		writeError(w, r, perrors.NewStorageError(perrors.CodeUploadFailed,
			"failed to store dataset snapshot", err))
		return
	}

	// The profile document lives beside the snapshot so exports and
	// reconciliation see one complete session prefix.
	profJSON, err := json.Marshal(prof)
	if err == nil {
		if perr := s.store.Put(ctx, storage.ProfilePath(sessionID), profJSON); perr != nil {
			writeError(w, r, perrors.NewStorageError(perrors.CodeUploadFailed,
				"failed to store dataset profile", perr))
			return
		}
	}

	now := time.Now()
	rec := &catalog.SessionRecord{
		SessionID:        sessionID,
		DatasetName:      header.Filename,
		RowCount:         int64(meta.Rows),
		ColumnCount:      len(meta.Columns),
		SnapshotPath:     meta.Path,
		SnapshotChecksum: meta.Checksum,
		SnapshotBytes:    meta.EncodedBytes,
		CreatedAt:        now,
		LastActiveAt:     now,
	}
	if err := rec.SetColumns(meta.Columns); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rec.SetProfile(prof); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.catalog.CreateSession(ctx, rec); err != nil {
		writeError(w, r, err)
		return
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.SessionCreated, SessionID: sessionID})
	}
	if s.stats != nil {
		s.stats.RecordUpload()
	}

	res, err := s.generator.IngestCharts(ctx, sessionID, table, prof, theme)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cols := make([]columnView, 0, len(table.Columns))
	for _, c := range table.Columns {
		cols = append(cols, columnView{Name: c.Name, Kind: string(c.Kind)})
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Session:        toSessionView(rec),
		Rows:           rec.RowCount,
		Columns:        cols,
		ChartsRendered: res.NewlyGenerated,
		Charts:         toChartViews(res.Charts),
	})
}

// handleListSessions lists sessions, newest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.catalog.ListSessions(r.Context(), 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, rec := range sessions {
		views = append(views, toSessionView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

// handleGetSession serves one session with its stored profile.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, _ := s.getSession(w, r)
	if rec == nil {
		return
	}
	prof, err := rec.Profile()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": toSessionView(rec),
		"profile": prof,
	})
}

// handleColumns serves the column names and kinds of a session, the
// contract the axis pickers are built on.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	rec, _ := s.getSession(w, r)
	if rec == nil {
		return
	}
	cols, err := rec.Columns()
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]columnView, 0, len(cols))
	for _, c := range cols {
		views = append(views, columnView{Name: c.Name, Kind: string(c.Kind)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": rec.SessionID,
		"columns":    views,
	})
}

// handleDeleteSession removes a session, its catalog rows, and its
// storage prefix. The retention daemon owns the delete sequencing so
// manual and idle deletion behave identically.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var err error
	if s.retention != nil {
		err = s.retention.DeleteSession(r.Context(), sessionID)
	} else {
		err = s.deleteSessionDirect(r, sessionID)
	}
	if err != nil {
		if errors.Is(err, catalog.ErrSessionNotFound) {
			writeError(w, r, perrors.NewNotFoundError(perrors.CodeSessionNotFound,
				fmt.Sprintf("session %s not found", sessionID)))
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":    true,
		"session_id": sessionID,
	})
}

// deleteSessionDirect is the fallback delete path when no retention
// daemon is wired (api-only mode without the retention component).
func (s *Server) deleteSessionDirect(r *http.Request, sessionID string) error {
	paths, err := s.catalog.DeleteSession(r.Context(), sessionID)
	if err != nil {
		return err
	}
	paths = append(paths, storage.ProfilePath(sessionID))
	for _, p := range paths {
		if err := s.store.Delete(r.Context(), p); err != nil {
			// Leftovers surface as orphans and are collected later.
			continue
		}
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{Type: events.SessionDeleted, SessionID: sessionID})
	}
	return nil
}

// handleExport streams a zip of every figure document in the session.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rec, _ := s.getSession(w, r)
	if rec == nil {
		return
	}
	recs, err := s.catalog.ListCharts(r.Context(), rec.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	paths := make([]string, 0, len(recs))
	byPath := make(map[string]*catalog.ChartRecord, len(recs))
	for _, c := range recs {
		paths = append(paths, c.FigurePath)
		byPath[c.FigurePath] = c
	}

	fetcher := storage.NewBatchFetcher(s.store, s.cfg.Render.Workers)
	result, err := fetcher.Fetch(r.Context(), paths)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", rec.SessionID+"-charts.zip"))
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	for _, c := range recs {
		data, ok := result.Objects[c.FigurePath]
		if !ok {
			// Missing figures are reconciliation's problem, not the
			// export's; skip and ship what exists.
			continue
		}
		f, err := zw.Create(fmt.Sprintf("%s_%s.json", c.ChartType, c.ChartID))
		if err != nil {
			return
		}
		if _, err := f.Write(data); err != nil {
			return
		}
	}
	zw.Close()
}

// getSession loads the session named by the {id} path segment, writing
// the error response itself when the session cannot be served.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) (*catalog.SessionRecord, error) {
	sessionID := r.PathValue("id")
	rec, err := s.catalog.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, catalog.ErrSessionNotFound) {
			err = perrors.NewNotFoundError(perrors.CodeSessionNotFound,
				fmt.Sprintf("session %s not found", sessionID))
		}
		writeError(w, r, err)
		return nil, err
	}
	return rec, nil
}
