package generate

import (
	"context"
	"fmt"

	"github.com/plotforge/plotforge/internal/charts"
	"github.com/plotforge/plotforge/internal/profile"
)

// datasetLevelTypes lists the charts produced once per session, in the
// order they appear in a fresh library.
var datasetLevelTypes = []charts.ChartType{
	charts.TypeCorrelation, charts.TypePairplot, charts.TypeMissing,
}

// IngestCharts renders the upload-time chart set for a freshly ingested
// session: the dataset-level charts (correlation, pairplot, missing
// values) plus the single-axis charts of every profiled column. Charts
// the dataset cannot support, a correlation with one numeric column or a
// missing-values chart with nothing missing, are skipped rather than
// failed. The sweep runs through the same dedup and fan-out path as
// on-demand requests, so re-running it against an existing library is a
// no-op.
func (o *Orchestrator) IngestCharts(ctx context.Context, sessionID string, table *profile.Table, prof *profile.DatasetProfile, theme charts.Theme) (*Result, error) {
	if theme == "" {
		theme = charts.ThemeLight
	}

	var specs []charts.ChartSpec
	for _, t := range datasetLevelTypes {
		specs = append(specs, charts.ChartSpec{Type: t, Theme: theme})
	}
	for _, col := range table.Columns {
		for _, t := range charts.ResolveSingle(col.Kind) {
			specs = append(specs, charts.ChartSpec{Type: t, X: col.Name, Theme: theme})
		}
	}

	existing, err := o.catalog.ChartKeys(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	fresh, duplicate := charts.Partition(specs, existing)

	res := &Result{SessionID: sessionID, AlreadyExisting: len(duplicate)}
	if len(fresh) == 0 {
		res.Message = msgAlreadyInLibrary
		if res.Charts, err = o.requestedRecords(ctx, sessionID, specs); err != nil {
			return nil, err
		}
		return res, nil
	}

	o.renderAndCommit(ctx, sessionID, fresh, table, prof, res)

	res.ChartsGenerated = res.NewlyGenerated > 0
	res.Message = fmt.Sprintf("Generated %d chart(s)", res.NewlyGenerated)
	if res.Charts, err = o.requestedRecords(ctx, sessionID, specs); err != nil {
		return nil, err
	}
	return res, nil
}
