// Package storage defines the persistence ports of the lab. Research can run
// entirely in memory; the Postgres and ClickHouse implementations exist so
// runs, their accounting trails, and the heavy timeseries survive the
// process.
package storage

import (
	"context"

	"factorlab/internal/domain"
)

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a completed run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// List retrieves all runs, newest first.
	List(ctx context.Context) ([]*domain.BacktestRun, error)
}

// PerformanceRecordStore provides access to performance_records storage.
type PerformanceRecordStore interface {
	// InsertBulk adds one run's records atomically. Fails the entire batch
	// on any duplicate (run_id, date).
	InsertBulk(ctx context.Context, runID string, records []domain.PerformanceRecord) error

	// GetByRunID retrieves all records for a run, ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.PerformanceRecord, error)

	// GetByDateRange retrieves records for a run within [from, to] (inclusive).
	GetByDateRange(ctx context.Context, runID string, from, to domain.Date) ([]domain.PerformanceRecord, error)
}

// FactorStatStore provides access to factor_stats storage.
type FactorStatStore interface {
	// InsertBulk adds evaluation rows atomically. Fails the entire batch on
	// any duplicate (run_id, factor, date, horizon).
	InsertBulk(ctx context.Context, runID string, stats []domain.FactorStat) error

	// GetByFactor retrieves all rows for a factor in a run, ordered by
	// date ASC then horizon ASC.
	GetByFactor(ctx context.Context, runID string, factor domain.FactorID) ([]domain.FactorStat, error)

	// GetByHorizon retrieves one factor's rows at a single horizon,
	// ordered by date ASC.
	GetByHorizon(ctx context.Context, runID string, factor domain.FactorID, horizon int) ([]domain.FactorStat, error)
}

// BarStore provides access to daily bar storage, keyed by symbol.
type BarStore interface {
	// InsertBulk adds bars for one symbol. Fails the entire batch on any
	// duplicate (symbol, date).
	InsertBulk(ctx context.Context, symbol string, bars []domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]domain.Bar, error)

	// GetByDateRange retrieves bars for a symbol within [from, to] (inclusive).
	GetByDateRange(ctx context.Context, symbol string, from, to domain.Date) ([]domain.Bar, error)

	// Symbols retrieves all stored symbols in ascending order.
	Symbols(ctx context.Context) ([]string, error)
}

// FactorScoreStore provides access to factor score timeseries storage.
type FactorScoreStore interface {
	// InsertBulk adds score rows for a run. Fails the entire batch on any
	// duplicate (run_id, factor, date, asset).
	InsertBulk(ctx context.Context, runID string, scores []domain.FactorScore) error

	// GetByFactor retrieves one factor's scores for a run, ordered by
	// date ASC then asset ASC.
	GetByFactor(ctx context.Context, runID string, factor domain.FactorID) ([]domain.FactorScore, error)
}
