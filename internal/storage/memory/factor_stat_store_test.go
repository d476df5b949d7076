package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

func testStats() []domain.FactorStat {
	return []domain.FactorStat{
		{Factor: "momentum_20", Date: 200, Horizon: 1, SpearmanIC: 0.10, PearsonIC: 0.08, N: 50},
		{Factor: "momentum_20", Date: 100, Horizon: 1, SpearmanIC: 0.12, PearsonIC: 0.09, N: 50},
		{Factor: "momentum_20", Date: 100, Horizon: 5, SpearmanIC: 0.07, PearsonIC: 0.05, N: 50},
		{Factor: "reversal_5", Date: 100, Horizon: 1, SpearmanIC: -0.04, PearsonIC: -0.03, N: 50},
	}
}

func TestFactorStatStore_GetByFactorOrdering(t *testing.T) {
	store := NewFactorStatStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", testStats()))

	got, err := store.GetByFactor(ctx, "run-1", "momentum_20")
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Date ASC, then horizon ASC.
	assert.Equal(t, domain.Date(100), got[0].Date)
	assert.Equal(t, 1, got[0].Horizon)
	assert.Equal(t, 5, got[1].Horizon)
	assert.Equal(t, domain.Date(200), got[2].Date)
}

func TestFactorStatStore_GetByHorizon(t *testing.T) {
	store := NewFactorStatStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", testStats()))

	got, err := store.GetByHorizon(ctx, "run-1", "momentum_20", 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, row := range got {
		assert.Equal(t, 1, row.Horizon)
	}
}

func TestFactorStatStore_DuplicateKeyFailsBatch(t *testing.T) {
	store := NewFactorStatStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", testStats()))

	dup := []domain.FactorStat{
		{Factor: "trailing_vol_20", Date: 300, Horizon: 1},
		{Factor: "momentum_20", Date: 100, Horizon: 1}, // already stored
	}
	err := store.InsertBulk(ctx, "run-1", dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Atomicity: the new factor must not have been applied either.
	got, err := store.GetByFactor(ctx, "run-1", "trailing_vol_20")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFactorStatStore_InvalidInput(t *testing.T) {
	store := NewFactorStatStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, "", testStats())
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertBulk(ctx, "run-1", []domain.FactorStat{{Date: 100}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
