// Package pipeline wires the engine components into the two run shapes the
// lab supports: research (factors and statistics) and simulation (portfolio
// and accounting). Each phase is timed and logged; persistence is optional
// and skipped when no store is configured.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"factorlab/internal/analytics"
	"factorlab/internal/domain"
	"factorlab/internal/factor"
	"factorlab/internal/ingest"
	"factorlab/internal/observability"
	"factorlab/internal/storage"
)

// Research runs factor evaluation and statistical analysis over a dataset.
type Research struct {
	runner    *factor.Runner
	evaluator *analytics.Evaluator
	base      int

	statStore  storage.FactorStatStore
	scoreStore storage.FactorScoreStore

	log zerolog.Logger
}

// ResearchResult carries the panels and the statistics report of one run.
type ResearchResult struct {
	Panels map[domain.FactorID]*domain.Panel[float64]
	Report *analytics.Report
}

// NewResearch creates the research pipeline. baseHorizon selects the horizon
// whose per-date stat rows are persisted.
func NewResearch(runner *factor.Runner, evaluator *analytics.Evaluator, baseHorizon int, log zerolog.Logger) *Research {
	return &Research{runner: runner, evaluator: evaluator, base: baseHorizon, log: log}
}

// WithStores enables persistence of stat rows and factor score panels.
// Either store may be nil.
func (p *Research) WithStores(stats storage.FactorStatStore, scores storage.FactorScoreStore) *Research {
	p.statStore = stats
	p.scoreStore = scores
	return p
}

// Run evaluates every registered factor over the dataset and computes the
// statistics report. runID keys the persisted rows.
func (p *Research) Run(ctx context.Context, runID string, ds *ingest.Dataset, reg *factor.Registry) (*ResearchResult, error) {
	assets := ds.History.Assets()
	dates := ds.Calendar.Sessions()

	start := time.Now()
	panels, err := p.runner.Evaluate(ctx, reg, ds.History, dates, assets)
	if err != nil {
		observability.RecordPipelinePhase("factors", "error", time.Since(start).Seconds())
		return nil, err
	}
	observability.RecordPipelinePhase("factors", "ok", time.Since(start).Seconds())

	grid := len(dates) * len(assets)
	for id, panel := range panels {
		observability.RecordFactorCells(string(id), panel.Len(), grid-panel.Len())
		p.log.Info().
			Str("factor", string(id)).
			Int("cells", panel.Len()).
			Int("dates", panel.NumDates()).
			Msg("factor panel computed")
	}

	start = time.Now()
	report, err := p.evaluator.Evaluate(ctx, panels, ds.History, ds.Calendar, assets)
	if err != nil {
		observability.RecordPipelinePhase("analytics", "error", time.Since(start).Seconds())
		return nil, err
	}
	observability.RecordPipelinePhase("analytics", "ok", time.Since(start).Seconds())

	if err := p.persist(ctx, runID, panels, report); err != nil {
		return nil, err
	}

	p.log.Info().
		Str("run_id", runID).
		Int("factors", len(report.Factors)).
		Msg("research run finished")
	return &ResearchResult{Panels: panels, Report: report}, nil
}

// persist writes stat rows and score panels to the configured stores.
func (p *Research) persist(ctx context.Context, runID string, panels map[domain.FactorID]*domain.Panel[float64], report *analytics.Report) error {
	start := time.Now()

	if p.statStore != nil {
		for _, fr := range report.Factors {
			rows := analytics.StatRows(fr, p.base)
			if len(rows) == 0 {
				continue
			}
			if err := p.statStore.InsertBulk(ctx, runID, rows); err != nil {
				observability.RecordPipelinePhase("persist", "error", time.Since(start).Seconds())
				return err
			}
			observability.DefaultMetrics.StatsComputed.Add(float64(len(rows)))
		}
	}

	if p.scoreStore != nil {
		for id, panel := range panels {
			rows := factor.Flatten(id, panel)
			if len(rows) == 0 {
				continue
			}
			if err := p.scoreStore.InsertBulk(ctx, runID, rows); err != nil {
				observability.RecordPipelinePhase("persist", "error", time.Since(start).Seconds())
				return err
			}
		}
	}

	observability.RecordPipelinePhase("persist", "ok", time.Since(start).Seconds())
	return nil
}
