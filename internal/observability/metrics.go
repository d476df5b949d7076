// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	BarsIngested   prometheus.Counter
	BarsFilled     prometheus.Counter
	FeedReconnects prometheus.Counter
	IngestErrors   *prometheus.CounterVec

	// Factor runtime metrics
	FactorCellsComputed *prometheus.CounterVec
	FactorCellsSkipped  *prometheus.CounterVec
	FactorRunDuration   *prometheus.HistogramVec

	// Backtest metrics
	BacktestDays    prometheus.Counter
	FillsExecuted   prometheus.Counter
	BacktestsTotal  *prometheus.CounterVec
	BacktestEquity  prometheus.Gauge
	StatsComputed   prometheus.Counter
	ReportsRendered prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "factorlab"
	}

	return &Metrics{
		// Ingestion metrics
		BarsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bars_ingested_total",
			Help:      "Total number of bars ingested",
		}),
		BarsFilled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bars_filled_total",
			Help:      "Total number of gap bars synthesized by forward fill",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "feed_reconnects_total",
			Help:      "Total number of bar feed reconnect attempts",
		}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by stage",
		}, []string{"stage"}),

		// Factor runtime metrics
		FactorCellsComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factor",
			Name:      "cells_computed_total",
			Help:      "Total number of factor cells computed",
		}, []string{"factor"}),
		FactorCellsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "factor",
			Name:      "cells_skipped_total",
			Help:      "Total number of factor cells skipped for insufficient lookback",
		}, []string{"factor"}),
		FactorRunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "factor",
			Name:      "run_duration_seconds",
			Help:      "Factor panel computation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"factor"}),

		// Backtest metrics
		BacktestDays: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "days_simulated_total",
			Help:      "Total number of sessions simulated",
		}),
		FillsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "fills_executed_total",
			Help:      "Total number of fills executed",
		}),
		BacktestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestEquity: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "equity",
			Help:      "Equity of the most recently simulated session",
		}),
		StatsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "stats_computed_total",
			Help:      "Total number of per-date factor stat rows computed",
		}),
		ReportsRendered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_rendered_total",
			Help:      "Total number of reports rendered",
		}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by phase and status",
		}, []string{"phase", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBarsIngested adds to the bars ingested counter.
func RecordBarsIngested(n int) {
	DefaultMetrics.BarsIngested.Add(float64(n))
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordFactorCells records computed and skipped cell counts for one factor.
func RecordFactorCells(factor string, computed, skipped int) {
	DefaultMetrics.FactorCellsComputed.WithLabelValues(factor).Add(float64(computed))
	DefaultMetrics.FactorCellsSkipped.WithLabelValues(factor).Add(float64(skipped))
}

// RecordBacktestDay increments the simulated days counter and sets the
// equity gauge.
func RecordBacktestDay(equity float64) {
	DefaultMetrics.BacktestDays.Inc()
	DefaultMetrics.BacktestEquity.Set(equity)
}

// RecordPipelinePhase records one pipeline phase outcome and duration.
func RecordPipelinePhase(phase, status string, seconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordDBQuery records one database query duration.
func RecordDBQuery(database, operation string, seconds float64) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
}

// RecordDBError records one database query error.
func RecordDBError(database, operation string) {
	DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
}
