// Package render turns chart specs into Plotly figure documents and writes
// them to object storage.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/internal/storage"
)

var (
	// ErrNoData means the dataset cannot feed this chart at all, e.g. a
	// correlation heatmap over fewer than two numeric columns. Dataset-level
	// generation skips these silently.
	ErrNoData = errors.New("render: not enough data for this chart")

	// ErrFigureTooLarge means the encoded figure exceeded MaxFigureBytes.
	ErrFigureTooLarge = errors.New("render: figure exceeds size limit")
)

// Options tunes figure construction.
type Options struct {
	// MaxFigureBytes rejects encoded figures above this size. 0 disables
	// the check.
	MaxFigureBytes int64

	// TopCategories caps category axes. 0 uses the compute default.
	TopCategories int

	// HistogramBins fixes the bin count. 0 selects the Sturges rule.
	HistogramBins int

	// PairplotColumns caps the scatter-matrix width.
	PairplotColumns int

	// KDEPoints is the density curve resolution.
	KDEPoints int
}

// DefaultOptions returns the production configuration.
func DefaultOptions() Options {
	return Options{
		MaxFigureBytes:  4 << 20,
		TopCategories:   20,
		PairplotColumns: 5,
		KDEPoints:       200,
	}
}

// Artifact describes a rendered and stored figure.
type Artifact struct {
	Path    string
	Bytes   int64
	Traces  int
	Elapsed time.Duration
}

// Renderer builds figures and persists them.
type Renderer struct {
	store storage.ObjectStorage
	opts  Options
}

// NewRenderer creates a renderer writing through the given storage.
func NewRenderer(store storage.ObjectStorage, opts Options) *Renderer {
	if opts.PairplotColumns <= 0 {
		opts.PairplotColumns = 5
	}
	return &Renderer{store: store, opts: opts}
}

// encodeBufPool provides reusable buffers for figure encoding.
var encodeBufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Render builds the figure for spec, encodes it, and stores it under the
// session's chart prefix. prof is only consulted by dataset-level charts
// and may be nil for axis charts.
func (r *Renderer) Render(ctx context.Context, sessionID, chartID string, spec charts.ChartSpec, table *profile.Table, prof *profile.DatasetProfile) (*Artifact, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("render: canceled before figure build: %w", err)
	}

	fig, err := r.buildFigure(spec, table, prof)
	if err != nil {
		return nil, err
	}

	buf := encodeBufPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		encodeBufPool.Put(buf)
	}()
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(fig); err != nil {
		return nil, fmt.Errorf("render: failed to encode figure: %w", err)
	}

	size := int64(buf.Len())
	if r.opts.MaxFigureBytes > 0 && size > r.opts.MaxFigureBytes {
		return nil, fmt.Errorf("render: %w: %d bytes over %d limit", ErrFigureTooLarge, size, r.opts.MaxFigureBytes)
	}

	path := storage.FigurePath(sessionID, chartID)
	if err := r.store.Put(ctx, path, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("render: failed to store figure: %w", err)
	}

	return &Artifact{
		Path:    path,
		Bytes:   size,
		Traces:  len(fig.Data),
		Elapsed: time.Since(start),
	}, nil
}

// buildFigure dispatches to the per-type builder.
func (r *Renderer) buildFigure(spec charts.ChartSpec, table *profile.Table, prof *profile.DatasetProfile) (*Figure, error) {
	switch spec.Type {
	case charts.TypeScatter:
		return r.scatterFigure(spec, table)
	case charts.TypeLine:
		return r.lineFigure(spec, table)
	case charts.TypeBar:
		return r.barFigure(spec, table)
	case charts.TypeGroupedBar:
		return r.groupedBarFigure(spec, table)
	case charts.TypeBox:
		return r.boxFigure(spec, table)
	case charts.TypeHistogram:
		return r.histogramFigure(spec, table)
	case charts.TypeDistribution:
		return r.distributionFigure(spec, table)
	case charts.TypeCorrelation:
		return r.correlationFigure(spec, table)
	case charts.TypePairplot:
		return r.pairplotFigure(spec, table)
	case charts.TypeMissing:
		return r.missingFigure(spec, prof)
	default:
		return nil, fmt.Errorf("render: unknown chart type %q", spec.Type)
	}
}
