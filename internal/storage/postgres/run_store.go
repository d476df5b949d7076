package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a completed run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_runs (
			run_id, created_at_ms, config_yaml,
			date_from, date_to, initial_capital,
			final_equity, total_return, max_drawdown, days
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9, $10
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.CreatedAtMs, r.ConfigYAML,
		int64(r.DateFrom), int64(r.DateTo), r.InitialCapital,
		r.FinalEquity, r.TotalReturn, r.MaxDrawdown, r.Days,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `
		SELECT
			run_id, created_at_ms, config_yaml,
			date_from, date_to, initial_capital,
			final_equity, total_return, max_drawdown, days
		FROM backtest_runs
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// List retrieves all runs, newest first.
func (s *RunStore) List(ctx context.Context) ([]*domain.BacktestRun, error) {
	query := `
		SELECT
			run_id, created_at_ms, config_yaml,
			date_from, date_to, initial_capital,
			final_equity, total_return, max_drawdown, days
		FROM backtest_runs
		ORDER BY created_at_ms DESC, run_id DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a BacktestRun.
func scanRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var dateFrom, dateTo int64

	err := row.Scan(
		&r.RunID, &r.CreatedAtMs, &r.ConfigYAML,
		&dateFrom, &dateTo, &r.InitialCapital,
		&r.FinalEquity, &r.TotalReturn, &r.MaxDrawdown, &r.Days,
	)
	if err != nil {
		return nil, err
	}

	r.DateFrom = domain.Date(dateFrom)
	r.DateTo = domain.Date(dateTo)
	return &r, nil
}
