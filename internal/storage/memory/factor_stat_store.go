package memory

import (
	"context"
	"sort"
	"sync"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

type statKey struct {
	factor  domain.FactorID
	date    domain.Date
	horizon int
}

// FactorStatStore is an in-memory implementation of storage.FactorStatStore.
type FactorStatStore struct {
	mu   sync.RWMutex
	data map[string]map[statKey]domain.FactorStat // run_id -> key -> row
}

// NewFactorStatStore creates a new in-memory factor stat store.
func NewFactorStatStore() *FactorStatStore {
	return &FactorStatStore{data: make(map[string]map[statKey]domain.FactorStat)}
}

// InsertBulk adds evaluation rows atomically. Fails the entire batch on any
// duplicate (run_id, factor, date, horizon).
func (s *FactorStatStore) InsertBulk(_ context.Context, runID string, stats []domain.FactorStat) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(stats) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]

	batchKeys := make(map[statKey]struct{}, len(stats))
	for _, row := range stats {
		if row.Factor == "" {
			return storage.ErrInvalidInput
		}
		k := statKey{row.Factor, row.Date, row.Horizon}
		if _, exists := existing[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	if existing == nil {
		existing = make(map[statKey]domain.FactorStat, len(stats))
		s.data[runID] = existing
	}
	for _, row := range stats {
		existing[statKey{row.Factor, row.Date, row.Horizon}] = row
	}
	return nil
}

// GetByFactor retrieves all rows for a factor in a run, ordered by date ASC
// then horizon ASC.
func (s *FactorStatStore) GetByFactor(_ context.Context, runID string, factor domain.FactorID) ([]domain.FactorStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(runID, func(k statKey) bool { return k.factor == factor }), nil
}

// GetByHorizon retrieves one factor's rows at a single horizon, ordered by
// date ASC.
func (s *FactorStatStore) GetByHorizon(_ context.Context, runID string, factor domain.FactorID, horizon int) ([]domain.FactorStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(runID, func(k statKey) bool {
		return k.factor == factor && k.horizon == horizon
	}), nil
}

func (s *FactorStatStore) collect(runID string, keep func(statKey) bool) []domain.FactorStat {
	var result []domain.FactorStat
	for k, row := range s.data[runID] {
		if keep(k) {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Horizon < result[j].Horizon
	})
	return result
}

var _ storage.FactorStatStore = (*FactorStatStore)(nil)
