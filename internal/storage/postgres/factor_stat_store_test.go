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

func testStats() []domain.FactorStat {
	return []domain.FactorStat{
		{Factor: "momentum_20", Date: 200, Horizon: 1, SpearmanIC: 0.10, PearsonIC: 0.08, N: 50},
		{Factor: "momentum_20", Date: 100, Horizon: 1, SpearmanIC: 0.12, PearsonIC: 0.09, N: 50},
		{Factor: "momentum_20", Date: 100, Horizon: 5, SpearmanIC: 0.07, PearsonIC: 0.05, N: 50},
		{Factor: "reversal_5", Date: 100, Horizon: 1, SpearmanIC: -0.04, PearsonIC: -0.03, N: 50},
	}
}

func TestFactorStatStore_InsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFactorStatStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", testStats()))

	got, err := store.GetByFactor(ctx, "run-1", "momentum_20")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Date(100), got[0].Date)
	assert.Equal(t, 1, got[0].Horizon)
	assert.Equal(t, 5, got[1].Horizon)
	assert.Equal(t, domain.Date(200), got[2].Date)

	byHorizon, err := store.GetByHorizon(ctx, "run-1", "momentum_20", 1)
	require.NoError(t, err)
	require.Len(t, byHorizon, 2)
	assert.Equal(t, 0.12, byHorizon[0].SpearmanIC)
}

func TestFactorStatStore_DuplicateRollsBackBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFactorStatStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", testStats()))

	dup := []domain.FactorStat{
		{Factor: "trailing_vol_20", Date: 300, Horizon: 1},
		{Factor: "momentum_20", Date: 100, Horizon: 1},
	}
	assert.ErrorIs(t, store.InsertBulk(ctx, "run-1", dup), storage.ErrDuplicateKey)

	got, err := store.GetByFactor(ctx, "run-1", "trailing_vol_20")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFactorStatStore_RunsAreIsolated(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewFactorStatStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", testStats()))
	require.NoError(t, store.InsertBulk(ctx, "run-2", testStats()))

	got, err := store.GetByFactor(ctx, "run-2", "reversal_5")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
