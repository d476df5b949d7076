// Package main runs a research pass: bars in, factor panels and statistics
// out, with reports rendered to the output directory.
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
	"factorlab/internal/config"
	"factorlab/internal/domain"
	"factorlab/internal/factor"
	"factorlab/internal/ingest"
	"factorlab/internal/observability"
	"factorlab/internal/pipeline"
	"factorlab/internal/reporting"
	"factorlab/internal/storage"
	chstore "factorlab/internal/storage/clickhouse"
	"factorlab/internal/storage/memory"
	"factorlab/internal/storage/migrations"
	pgstore "factorlab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration")
	barsCSV := flag.String("bars", "", "Bars CSV path (overrides config)")
	runID := flag.String("run-id", "", "Run identifier (overrides config)")
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
		cfg.Backtest.RunID = fmt.Sprintf("research-%d", os.Getpid())
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

	// Storage: Postgres for stats when configured, ClickHouse for the score
	// timeseries, memory otherwise.
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
		statStore = pgstore.NewFactorStatStore(pool)
	}

	var scoreStore storage.FactorScoreStore = memory.NewFactorScoreStore()
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("clickhouse connect failed")
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatal().Err(err).Msg("clickhouse migrations failed")
		}
		scoreStore = chstore.NewFactorScoreStore(conn)
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

	evaluator := analytics.NewEvaluator(cfg.AnalyticsOptions())
	research := pipeline.NewResearch(factor.NewRunner(0), evaluator, cfg.Analytics.BaseHorizon, logger).
		WithStores(statStore, scoreStore)

	result, err := research.Run(ctx, cfg.Backtest.RunID, ds, reg)
	if err != nil {
		logger.Fatal().Err(err).Msg("research run failed")
	}

	if err := writeArtifacts(cfg, result); err != nil {
		logger.Fatal().Err(err).Msg("writing artifacts failed")
	}
	observability.DefaultMetrics.ReportsRendered.Inc()

	logger.Info().
		Str("run_id", cfg.Backtest.RunID).
		Str("output_dir", cfg.Storage.OutputDir).
		Msg("research complete")
}

// writeArtifacts renders the statistics report and the Parquet score panels.
func writeArtifacts(cfg *config.Config, result *pipeline.ResearchResult) error {
	outDir := cfg.Storage.OutputDir
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var decay []reporting.DecayRow
	var stats []domain.FactorStat
	for _, fr := range result.Report.Factors {
		for _, p := range fr.Decay {
			decay = append(decay, reporting.DecayRow{
				Factor: fr.Factor, Horizon: p.Horizon, MeanIC: p.MeanIC, Dates: p.Dates,
			})
		}
		stats = append(stats, analytics.StatRows(fr, cfg.Analytics.BaseHorizon)...)
	}

	if err := os.WriteFile(filepath.Join(outDir, "factor_stats.csv"),
		[]byte(reporting.RenderStatsCSV(stats)), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "ic_decay.csv"),
		[]byte(reporting.RenderDecayCSV(decay)), 0o644); err != nil {
		return err
	}

	pw := reporting.NewParquetWriter(cfg.Storage.DataDir)
	for id, panel := range result.Panels {
		scores := factor.Flatten(id, panel)
		if len(scores) == 0 {
			continue
		}
		if err := pw.WriteScores(cfg.Backtest.RunID, id, scores); err != nil {
			return err
		}
	}
	return nil
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
