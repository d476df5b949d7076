package postgres

import (
	"context"
	"fmt"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

// FactorStatStore implements storage.FactorStatStore using PostgreSQL.
type FactorStatStore struct {
	pool *Pool
}

// NewFactorStatStore creates a new FactorStatStore.
func NewFactorStatStore(pool *Pool) *FactorStatStore {
	return &FactorStatStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FactorStatStore = (*FactorStatStore)(nil)

// InsertBulk adds evaluation rows atomically. Fails the entire batch on any
// duplicate (run_id, factor, date, horizon).
func (s *FactorStatStore) InsertBulk(ctx context.Context, runID string, stats []domain.FactorStat) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(stats) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO factor_stats (
			run_id, factor, date, horizon,
			spearman_ic, pearson_ic, n
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)
	`

	for _, row := range stats {
		if row.Factor == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			runID, string(row.Factor), int64(row.Date), row.Horizon,
			row.SpearmanIC, row.PearsonIC, row.N,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert factor stat in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByFactor retrieves all rows for a factor in a run, ordered by date ASC
// then horizon ASC.
func (s *FactorStatStore) GetByFactor(ctx context.Context, runID string, factor domain.FactorID) ([]domain.FactorStat, error) {
	query := selectFactorStatsQuery + `
		WHERE run_id = $1 AND factor = $2
		ORDER BY date ASC, horizon ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, string(factor))
	if err != nil {
		return nil, fmt.Errorf("get factor stats by factor: %w", err)
	}
	defer rows.Close()

	return scanFactorStats(rows)
}

// GetByHorizon retrieves one factor's rows at a single horizon, ordered by
// date ASC.
func (s *FactorStatStore) GetByHorizon(ctx context.Context, runID string, factor domain.FactorID, horizon int) ([]domain.FactorStat, error) {
	query := selectFactorStatsQuery + `
		WHERE run_id = $1 AND factor = $2 AND horizon = $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, string(factor), horizon)
	if err != nil {
		return nil, fmt.Errorf("get factor stats by horizon: %w", err)
	}
	defer rows.Close()

	return scanFactorStats(rows)
}

const selectFactorStatsQuery = `
	SELECT factor, date, horizon, spearman_ic, pearson_ic, n
	FROM factor_stats
`

// scanFactorStats scans multiple rows.
func scanFactorStats(rows pgRows) ([]domain.FactorStat, error) {
	var stats []domain.FactorStat

	for rows.Next() {
		var row domain.FactorStat
		var factor string
		var date int64

		if err := rows.Scan(&factor, &date, &row.Horizon, &row.SpearmanIC, &row.PearsonIC, &row.N); err != nil {
			return nil, fmt.Errorf("scan factor stat row: %w", err)
		}

		row.Factor = domain.FactorID(factor)
		row.Date = domain.Date(date)
		stats = append(stats, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factor stat rows: %w", err)
	}

	return stats, nil
}
