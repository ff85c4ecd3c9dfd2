// Package generate coordinates on-demand chart generation: it validates
// the axis selection, resolves the eligible chart types, deduplicates
// against the session's library, fans renders out with bounded
// parallelism, and commits the surviving records.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/dataset"
	perrors "github.com/plotforge/plotforge/internal/errors"
	"github.com/plotforge/plotforge/internal/events"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/internal/render"
	"github.com/plotforge/plotforge/internal/storage"
	"github.com/plotforge/plotforge/pkg/types"
)

// FigureRenderer builds and stores one figure. *render.Renderer satisfies
// this; tests substitute failing renderers to exercise partial batches.
type FigureRenderer interface {
	Render(ctx context.Context, sessionID, chartID string, spec charts.ChartSpec, table *profile.Table, prof *profile.DatasetProfile) (*render.Artifact, error)
}

// Options configures the orchestrator.
type Options struct {
	// Workers is the number of renders in flight at once (default: 4).
	Workers int

	// RenderTimeout bounds a single render. Zero disables the bound.
	RenderTimeout time.Duration
}

// DefaultOptions returns the default orchestrator configuration.
func DefaultOptions() Options {
	return Options{
		Workers:       4,
		RenderTimeout: 30 * time.Second,
	}
}

// Orchestrator drives generation requests end to end.
type Orchestrator struct {
	catalog  catalog.Catalog
	store    storage.ObjectStorage
	renderer FigureRenderer
	bus      *events.Bus
	ids      *types.ULIDGenerator
	opts     Options
}

// NewOrchestrator creates an orchestrator over the given collaborators.
// bus may be nil when no subscriber cares about chart events.
func NewOrchestrator(cat catalog.Catalog, store storage.ObjectStorage, renderer FigureRenderer, bus *events.Bus, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Orchestrator{
		catalog:  cat,
		store:    store,
		renderer: renderer,
		bus:      bus,
		ids:      types.NewULIDGenerator(),
		opts:     opts,
	}
}

// RequestedTypes is the tagged form of a request's chart type selection:
// either the "all" sentinel or an explicit list. The orchestrator expands
// All into the full eligible set before deduplication runs.
type RequestedTypes struct {
	All   bool
	Types []charts.ChartType
}

// ParseRequestedTypes converts raw chart type names into the tagged form.
// The "all" sentinel anywhere in the list selects everything eligible.
// Unrecognized names fail with INVALID_CHART_TYPE.
func ParseRequestedTypes(names []string) (RequestedTypes, error) {
	var req RequestedTypes
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), charts.AllSentinel) {
			req.All = true
			continue
		}
		t, ok := charts.ParseChartType(name)
		if !ok {
			return RequestedTypes{}, perrors.NewValidationError(perrors.CodeInvalidChartType,
				fmt.Sprintf("unknown chart type %q", name))
		}
		req.Types = append(req.Types, t)
	}
	if req.All {
		req.Types = nil
	}
	return req, nil
}

// Request describes one generation call.
type Request struct {
	SessionID string
	XAxis     string
	YAxis     string
	Types     RequestedTypes
	Theme     charts.Theme
}

// SpecFailure records a render that failed without aborting its siblings.
type SpecFailure struct {
	Spec charts.ChartSpec
	Err  error
}

// Result summarizes a generation call. Charts holds the records backing
// every requested spec that exists after the call, in library order.
type Result struct {
	SessionID       string
	ChartsGenerated bool
	NewlyGenerated  int
	AlreadyExisting int
	Ineligible      []charts.ChartType
	Failures        []SpecFailure
	Charts          []*catalog.ChartRecord
	Message         string
}

// User-facing result messages.
const (
	msgAlreadyInLibrary = "These plots are already in your library!"
	msgNothingEligible  = "No charts could be generated for the selected columns."
)

// Generate runs one on-demand generation request. Validation failures
// surface before any render; render failures are per-spec and never roll
// back sibling charts. Repeating an identical request is an idempotent
// no-op that reports ChartsGenerated=false.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	sess, err := o.catalog.GetSession(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, catalog.ErrSessionNotFound) {
			return nil, perrors.NewNotFoundError(perrors.CodeSessionNotFound,
				fmt.Sprintf("session %s not found", req.SessionID))
		}
		return nil, err
	}
	cols, err := sess.Columns()
	if err != nil {
		return nil, err
	}

	x := strings.TrimSpace(req.XAxis)
	y := strings.TrimSpace(req.YAxis)
	if x == "" && y == "" {
		return nil, perrors.NewValidationError(perrors.CodeNoAxisSelected,
			"select at least one axis column")
	}
	if x == "" {
		// Single-axis selections normalize onto x.
		x, y = y, ""
	}
	if !req.Types.All && len(req.Types.Types) == 0 {
		return nil, perrors.NewValidationError(perrors.CodeNoPlotTypeSelected,
			"select at least one chart type, or \"all\"")
	}
	for _, t := range req.Types.Types {
		if t.DatasetLevel() {
			return nil, perrors.NewValidationError(perrors.CodeInvalidChartType,
				fmt.Sprintf("%s charts are produced at upload time and cannot be requested by axis", t))
		}
	}

	xKind, err := columnKind(cols, x)
	if err != nil {
		return nil, err
	}
	var yKind types.ColumnKind
	if y != "" {
		if yKind, err = columnKind(cols, y); err != nil {
			return nil, err
		}
	}

	theme := req.Theme
	if theme == "" {
		theme = charts.ThemeLight
	}

	eligible := charts.Resolve(xKind, yKind)
	var wanted, ineligible []charts.ChartType
	if req.Types.All {
		wanted = eligible
	} else {
		for _, t := range req.Types.Types {
			if containsType(eligible, t) {
				wanted = append(wanted, t)
			} else {
				ineligible = append(ineligible, t)
			}
		}
	}

	specs := make([]charts.ChartSpec, 0, len(wanted))
	for _, t := range wanted {
		specs = append(specs, charts.ChartSpec{Type: t, X: x, Y: y, Theme: theme})
	}

	res := &Result{SessionID: req.SessionID, Ineligible: ineligible}
	if len(specs) == 0 {
		res.Message = msgNothingEligible
		return res, nil
	}

	existing, err := o.catalog.ChartKeys(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	fresh, duplicate := charts.Partition(specs, existing)
	res.AlreadyExisting = len(duplicate)

	if len(fresh) == 0 {
		// Idempotent no-op: nothing rendered, library untouched.
		res.Message = msgAlreadyInLibrary
		if res.Charts, err = o.requestedRecords(ctx, req.SessionID, specs); err != nil {
			return nil, err
		}
		return res, nil
	}

	table, err := o.loadSnapshot(ctx, sess)
	if err != nil {
		return nil, err
	}

	o.renderAndCommit(ctx, req.SessionID, fresh, table, nil, res)

	res.ChartsGenerated = res.NewlyGenerated > 0
	switch {
	case res.NewlyGenerated > 0:
		res.Message = fmt.Sprintf("Generated %d new chart(s)", res.NewlyGenerated)
		if res.AlreadyExisting > 0 {
			res.Message += fmt.Sprintf(" (%d already existed)", res.AlreadyExisting)
		}
	case res.AlreadyExisting > 0:
		res.Message = msgAlreadyInLibrary
	default:
		res.Message = msgNothingEligible
	}

	if res.Charts, err = o.requestedRecords(ctx, req.SessionID, specs); err != nil {
		return nil, err
	}
	return res, nil
}

// renderOutcome carries one spec's render result out of the fan-out.
type renderOutcome struct {
	chartID  string
	artifact *render.Artifact
	skipped  bool
	err      error
}

// renderAndCommit fans the fresh specs out to the renderer and appends
// each success to the library, accumulating counts into res. A render
// failing with ErrNoData means the dataset cannot support that chart;
// those specs are skipped silently rather than reported as failures.
func (o *Orchestrator) renderAndCommit(ctx context.Context, sessionID string, fresh []charts.ChartSpec, table *profile.Table, prof *profile.DatasetProfile, res *Result) {
	outcomes := o.renderAll(ctx, sessionID, fresh, table, prof)

	for i, spec := range fresh {
		out := outcomes[i]
		if out.skipped {
			continue
		}
		if out.err != nil {
			res.Failures = append(res.Failures, SpecFailure{Spec: spec, Err: out.err})
			continue
		}

		rec := &catalog.ChartRecord{
			ChartID:     out.chartID,
			SessionID:   sessionID,
			ChartType:   string(spec.Type),
			XColumn:     spec.X,
			YColumn:     spec.Y,
			Theme:       string(spec.Theme),
			SpecKey:     spec.Key(),
			KeyHash:     spec.KeyHash(),
			Title:       spec.Title(),
			FigurePath:  out.artifact.Path,
			FigureBytes: out.artifact.Bytes,
			RenderMS:    out.artifact.Elapsed.Milliseconds(),
			CreatedAt:   time.Now(),
		}
		if err := o.catalog.AppendChart(ctx, rec); err != nil {
			if errors.Is(err, catalog.ErrDuplicateKey) {
				// A concurrent request committed this key first. The
				// unique constraint is the atomic arbiter; losing the
				// race is "already existed", not a failure.
				log.Printf("[INFO] generate: lost append race for %s in session %s", rec.SpecKey, sessionID)
				res.AlreadyExisting++
				o.discardArtifact(ctx, rec.FigurePath)
				continue
			}
			res.Failures = append(res.Failures, SpecFailure{Spec: spec, Err: err})
			continue
		}
		res.NewlyGenerated++
		o.publishChartAppended(rec)
	}
}

func (o *Orchestrator) publishChartAppended(rec *catalog.ChartRecord) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.Event{
		Type:      events.ChartAppended,
		SessionID: rec.SessionID,
		ChartID:   rec.ChartID,
		ChartType: rec.ChartType,
		Path:      rec.FigurePath,
		RenderMS:  rec.RenderMS,
	})
}

// renderAll renders specs with at most opts.Workers in flight. Outcomes
// land at the same index as their spec.
func (o *Orchestrator) renderAll(ctx context.Context, sessionID string, specs []charts.ChartSpec, table *profile.Table, prof *profile.DatasetProfile) []renderOutcome {
	outcomes := make([]renderOutcome, len(specs))
	sem := semaphore.NewWeighted(int64(o.opts.Workers))

	var wg sync.WaitGroup
	for i, spec := range specs {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = renderOutcome{err: fmt.Errorf("generate: render slot: %w", err)}
			continue
		}
		wg.Add(1)
		go func(idx int, spec charts.ChartSpec) {
			defer sem.Release(1)
			defer wg.Done()
			outcomes[idx] = o.renderOne(ctx, sessionID, spec, table, prof)
		}(i, spec)
	}
	wg.Wait()

	return outcomes
}

// renderOne mints a chart ID and renders a single spec under the
// configured timeout.
func (o *Orchestrator) renderOne(ctx context.Context, sessionID string, spec charts.ChartSpec, table *profile.Table, prof *profile.DatasetProfile) renderOutcome {
	id, err := o.ids.Generate()
	if err != nil {
		return renderOutcome{err: fmt.Errorf("generate: failed to mint chart id: %w", err)}
	}
	chartID := id.String()

	rctx := ctx
	if o.opts.RenderTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, o.opts.RenderTimeout)
		defer cancel()
	}

	art, err := o.renderer.Render(rctx, sessionID, chartID, spec, table, prof)
	if err != nil {
		if errors.Is(err, render.ErrNoData) {
			return renderOutcome{skipped: true}
		}
		return renderOutcome{err: perrors.NewRenderError(perrors.CodeRenderFailure,
			fmt.Sprintf("failed to render %s", spec.Key()), err)}
	}
	return renderOutcome{chartID: chartID, artifact: art}
}

// discardArtifact removes a figure that lost its append race. Best
// effort; a leftover object is reclaimed by reconciliation later.
func (o *Orchestrator) discardArtifact(ctx context.Context, path string) {
	if err := o.store.Delete(ctx, path); err != nil {
		log.Printf("[WARN] generate: failed to delete orphaned figure %s: %v", path, err)
	}
}

// loadSnapshot reads the session's cleaned dataset back from storage.
func (o *Orchestrator) loadSnapshot(ctx context.Context, sess *catalog.SessionRecord) (*profile.Table, error) {
	cols, err := sess.Columns()
	if err != nil {
		return nil, err
	}
	meta := dataset.SnapshotMeta{
		Path:     sess.SnapshotPath,
		Rows:     int(sess.RowCount),
		Columns:  cols,
		Checksum: sess.SnapshotChecksum,
	}
	table, err := dataset.Load(ctx, o.store, sess.SessionID, meta)
	if err != nil {
		return nil, perrors.NewCatalogError(perrors.CodeSnapshotDecode,
			fmt.Sprintf("failed to load snapshot for session %s", sess.SessionID), err)
	}
	return table, nil
}

// requestedRecords returns the library records backing the requested
// specs, in library order.
func (o *Orchestrator) requestedRecords(ctx context.Context, sessionID string, specs []charts.ChartSpec) ([]*catalog.ChartRecord, error) {
	all, err := o.catalog.ListCharts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		want[s.Key()] = struct{}{}
	}
	var out []*catalog.ChartRecord
	for _, rec := range all {
		if _, ok := want[rec.SpecKey]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// columnKind resolves a column name against the session's profile.
func columnKind(cols []types.Column, name string) (types.ColumnKind, error) {
	for _, c := range cols {
		if c.Name == name {
			return c.Kind, nil
		}
	}
	return "", perrors.NewValidationError(perrors.CodeUnknownColumn,
		fmt.Sprintf("column %q is not in this dataset", name))
}

func containsType(list []charts.ChartType, t charts.ChartType) bool {
	for _, c := range list {
		if c == t {
			return true
		}
	}
	return false
}
