package clickhouse

import (
	"context"
	"fmt"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

// FactorScoreStore implements storage.FactorScoreStore using ClickHouse.
type FactorScoreStore struct {
	conn *Conn
}

// NewFactorScoreStore creates a new FactorScoreStore.
func NewFactorScoreStore(conn *Conn) *FactorScoreStore {
	return &FactorScoreStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FactorScoreStore = (*FactorScoreStore)(nil)

// InsertBulk adds score rows for a run. Fails the entire batch on any
// duplicate (run_id, factor, date, asset). A run writes each factor panel
// once, so the existence probe is one query per (factor, date) row group
// rather than per cell.
func (s *FactorScoreStore) InsertBulk(ctx context.Context, runID string, scores []domain.FactorScore) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(scores) == 0 {
		return nil
	}

	type key struct {
		factor domain.FactorID
		date   domain.Date
		asset  domain.AssetID
	}
	seen := make(map[key]struct{}, len(scores))
	factors := make(map[domain.FactorID]struct{})
	for _, row := range scores {
		if row.Factor == "" {
			return storage.ErrInvalidInput
		}
		k := key{row.Factor, row.Date, row.Asset}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		factors[row.Factor] = struct{}{}
	}

	for f := range factors {
		exists, err := s.exists(ctx, runID, f)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO factor_scores (run_id, factor, date, asset, score)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, row := range scores {
		err = batch.Append(runID, string(row.Factor), int64(row.Date), int32(row.Asset), row.Score)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByFactor retrieves one factor's scores for a run, ordered by date ASC
// then asset ASC.
func (s *FactorScoreStore) GetByFactor(ctx context.Context, runID string, factor domain.FactorID) ([]domain.FactorScore, error) {
	query := `
		SELECT factor, date, asset, score
		FROM factor_scores
		WHERE run_id = ? AND factor = ?
		ORDER BY date ASC, asset ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, string(factor))
	if err != nil {
		return nil, fmt.Errorf("query factor scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.FactorScore
	for rows.Next() {
		var row domain.FactorScore
		var factorName string
		var date int64
		var asset int32

		if err := rows.Scan(&factorName, &date, &asset, &row.Score); err != nil {
			return nil, fmt.Errorf("scan factor score row: %w", err)
		}

		row.Factor = domain.FactorID(factorName)
		row.Date = domain.Date(date)
		row.Asset = domain.AssetID(asset)
		scores = append(scores, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factor score rows: %w", err)
	}

	return scores, nil
}

// exists checks whether a run already stored rows for a factor.
func (s *FactorScoreStore) exists(ctx context.Context, runID string, factor domain.FactorID) (bool, error) {
	query := `SELECT count(*) FROM factor_scores WHERE run_id = ? AND factor = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, string(factor)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
