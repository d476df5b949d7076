package memory

import (
	"context"
	"sort"
	"sync"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

type scoreKey struct {
	factor domain.FactorID
	date   domain.Date
	asset  domain.AssetID
}

// FactorScoreStore is an in-memory implementation of storage.FactorScoreStore.
type FactorScoreStore struct {
	mu   sync.RWMutex
	data map[string]map[scoreKey]domain.FactorScore // run_id -> key -> row
}

// NewFactorScoreStore creates a new in-memory factor score store.
func NewFactorScoreStore() *FactorScoreStore {
	return &FactorScoreStore{data: make(map[string]map[scoreKey]domain.FactorScore)}
}

// InsertBulk adds score rows for a run. Fails the entire batch on any
// duplicate (run_id, factor, date, asset).
func (s *FactorScoreStore) InsertBulk(_ context.Context, runID string, scores []domain.FactorScore) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(scores) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]

	batchKeys := make(map[scoreKey]struct{}, len(scores))
	for _, row := range scores {
		if row.Factor == "" {
			return storage.ErrInvalidInput
		}
		k := scoreKey{row.Factor, row.Date, row.Asset}
		if _, exists := existing[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	if existing == nil {
		existing = make(map[scoreKey]domain.FactorScore, len(scores))
		s.data[runID] = existing
	}
	for _, row := range scores {
		existing[scoreKey{row.Factor, row.Date, row.Asset}] = row
	}
	return nil
}

// GetByFactor retrieves one factor's scores for a run, ordered by date ASC
// then asset ASC.
func (s *FactorScoreStore) GetByFactor(_ context.Context, runID string, factor domain.FactorID) ([]domain.FactorScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.FactorScore
	for k, row := range s.data[runID] {
		if k.factor == factor {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Asset < result[j].Asset
	})
	return result, nil
}

var _ storage.FactorScoreStore = (*FactorScoreStore)(nil)
