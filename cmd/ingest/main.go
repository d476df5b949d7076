// Package main loads daily bars into the bar store, either from a CSV file
// or by streaming from a websocket feed until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"factorlab/internal/config"
	"factorlab/internal/domain"
	"factorlab/internal/ingest"
	"factorlab/internal/observability"
	"factorlab/internal/storage"
	chstore "factorlab/internal/storage/clickhouse"
	"factorlab/internal/storage/memory"
	"factorlab/internal/storage/migrations"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration")
	barsCSV := flag.String("bars", "", "Bars CSV path (overrides config)")
	endpoint := flag.String("endpoint", "", "Websocket feed endpoint (overrides config)")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbols to subscribe in live mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *barsCSV != "" {
		cfg.Data.BarsCSV = *barsCSV
	}
	if *endpoint != "" {
		cfg.Data.FeedEndpoint = *endpoint
	}
	if cfg.Data.BarsCSV == "" && cfg.Data.FeedEndpoint == "" {
		fmt.Fprintln(os.Stderr, "no bar source: set --bars or --endpoint")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("stopping ingest")
		cancel()
	}()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	var barStore storage.BarStore = memory.NewBarStore()
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("clickhouse connect failed")
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatal().Err(err).Msg("clickhouse migrations failed")
		}
		barStore = chstore.NewBarStore(conn)
	} else {
		logger.Warn().Msg("no clickhouse DSN configured, bars are kept in memory only")
	}

	if cfg.Data.FeedEndpoint != "" {
		symbols := splitSymbols(*symbolsFlag)
		if len(symbols) == 0 {
			logger.Fatal().Msg("live mode needs --symbols")
		}
		if err := runLive(ctx, cfg, barStore, symbols, logger); err != nil {
			logger.Fatal().Err(err).Msg("live ingest failed")
		}
		return
	}

	if err := runCSV(ctx, cfg, barStore, logger); err != nil {
		logger.Fatal().Err(err).Msg("csv ingest failed")
	}
}

// runCSV loads the configured CSV file and bulk-inserts its bars grouped by
// symbol.
func runCSV(ctx context.Context, cfg *config.Config, barStore storage.BarStore, logger zerolog.Logger) error {
	rows, err := ingest.LoadCSVFile(cfg.Data.BarsCSV)
	if err != nil {
		observability.DefaultMetrics.IngestErrors.WithLabelValues("parse").Inc()
		return err
	}

	bySymbol := make(map[string][]domain.Bar)
	for _, row := range rows {
		bySymbol[row.Symbol] = append(bySymbol[row.Symbol], row.Bar)
	}
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		if err := barStore.InsertBulk(ctx, sym, bySymbol[sym]); err != nil {
			observability.DefaultMetrics.IngestErrors.WithLabelValues("store").Inc()
			return fmt.Errorf("insert bars for %s: %w", sym, err)
		}
	}
	observability.RecordBarsIngested(len(rows))

	logger.Info().
		Int("symbols", len(symbols)).
		Int("bars", len(rows)).
		Str("source", cfg.Data.BarsCSV).
		Msg("csv ingest complete")
	return nil
}

// runLive streams bars from the feed into the store until the context is
// cancelled.
func runLive(ctx context.Context, cfg *config.Config, barStore storage.BarStore, symbols []string, logger zerolog.Logger) error {
	feed, err := ingest.NewBarFeed(ctx, cfg.Data.FeedEndpoint, nil, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	bars, err := feed.Subscribe(symbols)
	if err != nil {
		return err
	}
	logger.Info().Strs("symbols", symbols).Msg("live ingest started")

	var total int
	for {
		select {
		case <-ctx.Done():
			logger.Info().Int("bars", total).Msg("live ingest stopped")
			return nil
		case sb, ok := <-bars:
			if !ok {
				logger.Info().Int("bars", total).Msg("feed closed")
				return nil
			}
			if err := barStore.InsertBulk(ctx, sb.Symbol, []domain.Bar{sb.Bar}); err != nil {
				observability.DefaultMetrics.IngestErrors.WithLabelValues("store").Inc()
				logger.Error().Err(err).Str("symbol", sb.Symbol).Msg("bar insert failed")
				continue
			}
			total++
			observability.RecordBarsIngested(1)
		}
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if sym := strings.TrimSpace(part); sym != "" {
			out = append(out, sym)
		}
	}
	return out
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
