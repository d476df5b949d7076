package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"factorlab/internal/backtest"
	"factorlab/internal/domain"
	"factorlab/internal/ingest"
	"factorlab/internal/observability"
	"factorlab/internal/portfolio"
	"factorlab/internal/storage"
)

// Simulation turns one factor's panel into a backtested run: portfolio
// construction, the daily event loop, and the persisted accounting trail.
type Simulation struct {
	engine *backtest.Engine

	runStore    storage.RunStore
	recordStore storage.PerformanceRecordStore

	log zerolog.Logger
	now func() time.Time
}

// NewSimulation creates the simulation pipeline.
func NewSimulation(engine *backtest.Engine, log zerolog.Logger) *Simulation {
	return &Simulation{
		engine: engine,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithStores enables persistence of the run row and its records. Either
// store may be nil.
func (p *Simulation) WithStores(runs storage.RunStore, records storage.PerformanceRecordStore) *Simulation {
	p.runStore = runs
	p.recordStore = records
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Simulation) WithClock(now func() time.Time) *Simulation {
	p.now = now
	return p
}

// Run constructs targets from the factor panel and simulates them.
// configYAML is the resolved configuration snapshot persisted with the run.
func (p *Simulation) Run(
	ctx context.Context,
	runID string,
	configYAML string,
	ctor *portfolio.Constructor,
	factorPanel *domain.Panel[float64],
	ds *ingest.Dataset,
	initialCapital float64,
) (*backtest.Result, domain.BacktestRun, error) {
	start := time.Now()

	targets, err := ctor.BuildTargets(factorPanel)
	if err != nil {
		observability.RecordPipelinePhase("portfolio", "error", time.Since(start).Seconds())
		return nil, domain.BacktestRun{}, err
	}
	observability.RecordPipelinePhase("portfolio", "ok", time.Since(start).Seconds())

	start = time.Now()
	result, err := p.engine.Run(ctx, ds.History, ds.Calendar, targets, initialCapital)
	if err != nil {
		observability.RecordPipelinePhase("backtest", "error", time.Since(start).Seconds())
		observability.DefaultMetrics.BacktestsTotal.WithLabelValues("error").Inc()
		return nil, domain.BacktestRun{}, err
	}
	observability.RecordPipelinePhase("backtest", "ok", time.Since(start).Seconds())
	observability.DefaultMetrics.BacktestsTotal.WithLabelValues("ok").Inc()
	observability.DefaultMetrics.FillsExecuted.Add(float64(len(result.Fills)))
	for _, r := range result.Records {
		observability.RecordBacktestDay(r.Equity)
	}

	run := backtest.Summarize(runID, configYAML, p.now().UnixMilli(), initialCapital, result.Records)

	if err := p.persist(ctx, runID, run, result); err != nil {
		return nil, domain.BacktestRun{}, err
	}

	observability.DefaultMetrics.LastSuccessfulRun.Set(float64(p.now().Unix()))
	p.log.Info().
		Str("run_id", runID).
		Float64("final_equity", run.FinalEquity).
		Float64("total_return", run.TotalReturn).
		Int("days", run.Days).
		Msg("simulation run finished")
	return result, run, nil
}

// persist writes the run row and its records to the configured stores.
func (p *Simulation) persist(ctx context.Context, runID string, run domain.BacktestRun, result *backtest.Result) error {
	start := time.Now()

	if p.runStore != nil {
		if err := p.runStore.Insert(ctx, &run); err != nil {
			observability.RecordPipelinePhase("persist", "error", time.Since(start).Seconds())
			return err
		}
	}
	if p.recordStore != nil && len(result.Records) > 0 {
		if err := p.recordStore.InsertBulk(ctx, runID, result.Records); err != nil {
			observability.RecordPipelinePhase("persist", "error", time.Since(start).Seconds())
			return err
		}
	}

	observability.RecordPipelinePhase("persist", "ok", time.Since(start).Seconds())
	return nil
}
