package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
	. "factorlab/internal/storage/postgres"
)

func testRecords(dates ...domain.Date) []domain.PerformanceRecord {
	out := make([]domain.PerformanceRecord, 0, len(dates))
	for i, d := range dates {
		out = append(out, domain.PerformanceRecord{
			Date:         d,
			Equity:       1_000_000 + float64(i)*1_000,
			PnL:          float64(i) * 1_000,
			GrossPnL:     float64(i)*1_000 + 50,
			Turnover:     0.1,
			SlippageCost: 25,
			SpreadCost:   25,
			TotalCost:    50,
			PeakEquity:   1_000_000 + float64(i)*1_000,
			Drawdown:     0,
		})
	}
	return out
}

func TestPerformanceRecordStore_InsertBulkAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceRecordStore(pool)
	ctx := context.Background()

	records := testRecords(300, 100, 200)
	require.NoError(t, store.InsertBulk(ctx, "run-1", records))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Date(100), got[0].Date)
	assert.Equal(t, domain.Date(300), got[2].Date)
	assert.Equal(t, records[1].Equity, got[0].Equity)
}

func TestPerformanceRecordStore_DuplicateRollsBackBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", testRecords(100)))

	err := store.InsertBulk(ctx, "run-1", testRecords(200, 100))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The transaction must have rolled back the whole batch.
	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestPerformanceRecordStore_DateRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceRecordStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", testRecords(100, 200, 300, 400)))

	got, err := store.GetByDateRange(ctx, "run-1", 200, 300)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Date(200), got[0].Date)
	assert.Equal(t, domain.Date(300), got[1].Date)
}
