// Package main runs a full simulation: bars in, one factor's signal through
// portfolio construction and the backtest engine, run and records persisted
// and reported.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"factorlab/internal/analytics"
	"factorlab/internal/backtest"
	"factorlab/internal/config"
	"factorlab/internal/domain"
	"factorlab/internal/execution"
	"factorlab/internal/factor"
	"factorlab/internal/ingest"
	"factorlab/internal/observability"
	"factorlab/internal/pipeline"
	"factorlab/internal/portfolio"
	"factorlab/internal/reporting"
	"factorlab/internal/storage"
	"factorlab/internal/storage/memory"
	"factorlab/internal/storage/migrations"
	pgstore "factorlab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration")
	barsCSV := flag.String("bars", "", "Bars CSV path (overrides config)")
	runID := flag.String("run-id", "", "Run identifier (overrides config)")
	factorName := flag.String("factor", "", "Driving factor (defaults to the first enabled)")
	outputDir := flag.String("output-dir", "", "Report output directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *barsCSV != "" {
		cfg.Data.BarsCSV = *barsCSV
	}
	if *runID != "" {
		cfg.Backtest.RunID = *runID
	}
	if *outputDir != "" {
		cfg.Storage.OutputDir = *outputDir
	}
	if cfg.Data.BarsCSV == "" {
		fmt.Fprintln(os.Stderr, "no bar source: set --bars or data.bars_csv")
		os.Exit(1)
	}
	if cfg.Backtest.RunID == "" {
		cfg.Backtest.RunID = fmt.Sprintf("backtest-%d", os.Getpid())
	}
	driving := *factorName
	if driving == "" {
		driving = cfg.Factors.Enabled[0]
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("cancelling run")
		cancel()
	}()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	var runStore storage.RunStore = memory.NewRunStore()
	var recordStore storage.PerformanceRecordStore = memory.NewPerformanceRecordStore()
	var statStore storage.FactorStatStore = memory.NewFactorStatStore()
	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("postgres migrations failed")
		}
		runStore = pgstore.NewRunStore(pool)
		recordStore = pgstore.NewPerformanceRecordStore(pool)
		statStore = pgstore.NewFactorStatStore(pool)
	}

	rows, err := ingest.LoadCSVFile(cfg.Data.BarsCSV)
	if err != nil {
		logger.Fatal().Err(err).Msg("bar load failed")
	}
	ds, err := ingest.BuildDataset(rows, ingest.MissingDataPolicy(cfg.Data.MissingDataPolicy), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("dataset build failed")
	}
	observability.RecordBarsIngested(len(ds.Bars))

	reg, err := factor.RegistryFromNames(cfg.Factors.Enabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("factor registry failed")
	}
	if _, ok := reg.Get(domain.FactorID(driving)); !ok {
		logger.Fatal().Str("factor", driving).Msg("driving factor is not enabled")
	}

	evaluator := analytics.NewEvaluator(cfg.AnalyticsOptions())
	research := pipeline.NewResearch(factor.NewRunner(0), evaluator, cfg.Analytics.BaseHorizon, logger).
		WithStores(statStore, nil)
	researchResult, err := research.Run(ctx, cfg.Backtest.RunID, ds, reg)
	if err != nil {
		logger.Fatal().Err(err).Msg("research phase failed")
	}

	ctor, err := portfolio.NewConstructor(cfg.PortfolioOptions(ds.Universe), ds.History)
	if err != nil {
		logger.Fatal().Err(err).Msg("portfolio setup failed")
	}
	model, err := execution.NewModel(cfg.CostOptions())
	if err != nil {
		logger.Fatal().Err(err).Msg("cost model setup failed")
	}
	engine := backtest.NewEngine(model, logger)

	configYAML, err := cfg.YAML()
	if err != nil {
		logger.Fatal().Err(err).Msg("config snapshot failed")
	}

	sim := pipeline.NewSimulation(engine, logger).WithStores(runStore, recordStore)
	result, run, err := sim.Run(ctx, cfg.Backtest.RunID, configYAML, ctor,
		researchResult.Panels[domain.FactorID(driving)], ds, cfg.Backtest.InitialCapital)
	if err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}

	if err := writeArtifacts(ctx, cfg, runStore, recordStore, statStore, result, run); err != nil {
		logger.Fatal().Err(err).Msg("writing artifacts failed")
	}
	observability.DefaultMetrics.ReportsRendered.Inc()

	logger.Info().
		Str("run_id", run.RunID).
		Float64("final_equity", run.FinalEquity).
		Float64("max_drawdown", run.MaxDrawdown).
		Msg("backtest complete")
}

// writeArtifacts renders the run report, the records CSV and the Parquet
// accounting trail.
func writeArtifacts(
	ctx context.Context,
	cfg *config.Config,
	runStore storage.RunStore,
	recordStore storage.PerformanceRecordStore,
	statStore storage.FactorStatStore,
	result *backtest.Result,
	run domain.BacktestRun,
) error {
	outDir := cfg.Storage.OutputDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	factors := make([]domain.FactorID, 0, len(cfg.Factors.Enabled))
	for _, name := range cfg.Factors.Enabled {
		factors = append(factors, domain.FactorID(name))
	}

	gen := reporting.NewGenerator(runStore, recordStore, statStore)
	report, err := gen.Generate(ctx, run.RunID, factors, cfg.Analytics.BaseHorizon)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(outDir, "report.md"),
		[]byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "records.csv"),
		[]byte(reporting.RenderRecordsCSV(result.Records)), 0o644); err != nil {
		return err
	}

	pw := reporting.NewParquetWriter(cfg.Storage.DataDir)
	return pw.WriteRecords(run.RunID, result.Records)
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
