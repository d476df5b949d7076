package memory

import (
	"context"
	"sort"
	"sync"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

// PerformanceRecordStore is an in-memory implementation of
// storage.PerformanceRecordStore.
type PerformanceRecordStore struct {
	mu   sync.RWMutex
	data map[string]map[domain.Date]domain.PerformanceRecord // run_id -> date -> record
}

// NewPerformanceRecordStore creates a new in-memory performance record store.
func NewPerformanceRecordStore() *PerformanceRecordStore {
	return &PerformanceRecordStore{
		data: make(map[string]map[domain.Date]domain.PerformanceRecord),
	}
}

// InsertBulk adds one run's records atomically. Fails the entire batch on
// any duplicate (run_id, date).
func (s *PerformanceRecordStore) InsertBulk(_ context.Context, runID string, records []domain.PerformanceRecord) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[runID]

	// First pass: check existing and intra-batch duplicates.
	batchKeys := make(map[domain.Date]struct{}, len(records))
	for _, r := range records {
		if _, exists := existing[r.Date]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.Date]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.Date] = struct{}{}
	}

	if existing == nil {
		existing = make(map[domain.Date]domain.PerformanceRecord, len(records))
		s.data[runID] = existing
	}
	for _, r := range records {
		existing[r.Date] = r
	}
	return nil
}

// GetByRunID retrieves all records for a run, ordered by date ASC.
func (s *PerformanceRecordStore) GetByRunID(_ context.Context, runID string) ([]domain.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(runID, func(domain.Date) bool { return true }), nil
}

// GetByDateRange retrieves records for a run within [from, to] (inclusive).
func (s *PerformanceRecordStore) GetByDateRange(_ context.Context, runID string, from, to domain.Date) ([]domain.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(runID, func(d domain.Date) bool { return d >= from && d <= to }), nil
}

func (s *PerformanceRecordStore) collect(runID string, keep func(domain.Date) bool) []domain.PerformanceRecord {
	var result []domain.PerformanceRecord
	for d, r := range s.data[runID] {
		if keep(d) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result
}

var _ storage.PerformanceRecordStore = (*PerformanceRecordStore)(nil)
