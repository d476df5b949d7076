package memory

import (
	"context"
	"sort"
	"sync"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]map[domain.Date]domain.Bar // symbol -> date -> bar
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{data: make(map[string]map[domain.Date]domain.Bar)}
}

// InsertBulk adds bars for one symbol. Fails the entire batch on any
// duplicate (symbol, date).
func (s *BarStore) InsertBulk(_ context.Context, symbol string, bars []domain.Bar) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[symbol]

	batchKeys := make(map[domain.Date]struct{}, len(bars))
	for _, b := range bars {
		if _, exists := existing[b.Date]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[b.Date]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[b.Date] = struct{}{}
	}

	if existing == nil {
		existing = make(map[domain.Date]domain.Bar, len(bars))
		s.data[symbol] = existing
	}
	for _, b := range bars {
		existing[b.Date] = b
	}
	return nil
}

// GetBySymbol retrieves all bars for a symbol, ordered by date ASC.
func (s *BarStore) GetBySymbol(_ context.Context, symbol string) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(symbol, func(domain.Date) bool { return true }), nil
}

// GetByDateRange retrieves bars for a symbol within [from, to] (inclusive).
func (s *BarStore) GetByDateRange(_ context.Context, symbol string, from, to domain.Date) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(symbol, func(d domain.Date) bool { return d >= from && d <= to }), nil
}

// Symbols retrieves all stored symbols in ascending order.
func (s *BarStore) Symbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for sym := range s.data {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (s *BarStore) collect(symbol string, keep func(domain.Date) bool) []domain.Bar {
	var result []domain.Bar
	for d, b := range s.data[symbol] {
		if keep(d) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result
}

var _ storage.BarStore = (*BarStore)(nil)
