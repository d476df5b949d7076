package postgres

import (
	"context"
	"fmt"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

// PerformanceRecordStore implements storage.PerformanceRecordStore using
// PostgreSQL.
type PerformanceRecordStore struct {
	pool *Pool
}

// NewPerformanceRecordStore creates a new PerformanceRecordStore.
func NewPerformanceRecordStore(pool *Pool) *PerformanceRecordStore {
	return &PerformanceRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PerformanceRecordStore = (*PerformanceRecordStore)(nil)

const insertPerformanceRecordQuery = `
	INSERT INTO performance_records (
		run_id, date,
		equity, pnl, gross_pnl, turnover,
		slippage_cost, spread_cost, total_cost,
		peak_equity, drawdown
	) VALUES (
		$1, $2,
		$3, $4, $5, $6,
		$7, $8, $9,
		$10, $11
	)
`

// InsertBulk adds one run's records atomically. Fails the entire batch on
// any duplicate (run_id, date).
func (s *PerformanceRecordStore) InsertBulk(ctx context.Context, runID string, records []domain.PerformanceRecord) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		_, err := tx.Exec(ctx, insertPerformanceRecordQuery,
			runID, int64(r.Date),
			r.Equity, r.PnL, r.GrossPnL, r.Turnover,
			r.SlippageCost, r.SpreadCost, r.TotalCost,
			r.PeakEquity, r.Drawdown,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert performance record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves all records for a run, ordered by date ASC.
func (s *PerformanceRecordStore) GetByRunID(ctx context.Context, runID string) ([]domain.PerformanceRecord, error) {
	query := selectPerformanceRecordsQuery + `
		WHERE run_id = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get performance records by run id: %w", err)
	}
	defer rows.Close()

	return scanPerformanceRecords(rows)
}

// GetByDateRange retrieves records for a run within [from, to] (inclusive).
func (s *PerformanceRecordStore) GetByDateRange(ctx context.Context, runID string, from, to domain.Date) ([]domain.PerformanceRecord, error) {
	query := selectPerformanceRecordsQuery + `
		WHERE run_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, int64(from), int64(to))
	if err != nil {
		return nil, fmt.Errorf("get performance records by date range: %w", err)
	}
	defer rows.Close()

	return scanPerformanceRecords(rows)
}

const selectPerformanceRecordsQuery = `
	SELECT
		date,
		equity, pnl, gross_pnl, turnover,
		slippage_cost, spread_cost, total_cost,
		peak_equity, drawdown
	FROM performance_records
`

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanPerformanceRecords scans multiple rows.
func scanPerformanceRecords(rows pgRows) ([]domain.PerformanceRecord, error) {
	var records []domain.PerformanceRecord

	for rows.Next() {
		var r domain.PerformanceRecord
		var date int64

		err := rows.Scan(
			&date,
			&r.Equity, &r.PnL, &r.GrossPnL, &r.Turnover,
			&r.SlippageCost, &r.SpreadCost, &r.TotalCost,
			&r.PeakEquity, &r.Drawdown,
		)
		if err != nil {
			return nil, fmt.Errorf("scan performance record row: %w", err)
		}

		r.Date = domain.Date(date)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance record rows: %w", err)
	}

	return records, nil
}
