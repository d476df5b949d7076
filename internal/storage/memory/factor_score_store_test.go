package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

func TestFactorScoreStore_InsertAndGetOrdered(t *testing.T) {
	store := NewFactorScoreStore()
	ctx := context.Background()

	scores := []domain.FactorScore{
		{Factor: "momentum_20", Date: 200, Asset: 1, Score: 0.3},
		{Factor: "momentum_20", Date: 100, Asset: 2, Score: 0.1},
		{Factor: "momentum_20", Date: 100, Asset: 0, Score: -0.2},
		{Factor: "reversal_5", Date: 100, Asset: 0, Score: 0.5},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", scores))

	got, err := store.GetByFactor(ctx, "run-1", "momentum_20")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.AssetID(0), got[0].Asset)
	assert.Equal(t, domain.AssetID(2), got[1].Asset)
	assert.Equal(t, domain.Date(200), got[2].Date)
}

func TestFactorScoreStore_DuplicateCell(t *testing.T) {
	store := NewFactorScoreStore()
	ctx := context.Background()

	row := []domain.FactorScore{{Factor: "momentum_20", Date: 100, Asset: 0, Score: 0.1}}
	require.NoError(t, store.InsertBulk(ctx, "run-1", row))
	assert.ErrorIs(t, store.InsertBulk(ctx, "run-1", row), storage.ErrDuplicateKey)

	// The same cell under another run is a distinct key.
	require.NoError(t, store.InsertBulk(ctx, "run-2", row))
}
