package factor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/domain"
)

func dayMs(n int) domain.Date {
	return domain.Date(int64(n) * 86_400_000)
}

func barsFor(asset domain.AssetID, closes []float64) []domain.Bar {
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		out[i] = domain.Bar{Asset: asset, Date: dayMs(i + 1), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func fiveDayHistory(t *testing.T) (*domain.History, []domain.Date) {
	t.Helper()
	bars := barsFor(0, []float64{100, 110, 121, 133.1, 146.41})
	bars = append(bars, barsFor(1, []float64{50, 45, 40.5, 36.45, 32.805})...)
	h, err := domain.BuildHistory(bars)
	require.NoError(t, err)
	dates := []domain.Date{dayMs(1), dayMs(2), dayMs(3), dayMs(4), dayMs(5)}
	return h, dates
}

func TestEvaluate_MomentumLookback3(t *testing.T) {
	// Two assets, five daily bars, one momentum factor with lookback 3:
	// the first two dates must be absent, the remaining three defined.
	hist, dates := fiveDayHistory(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(Momentum(3)))

	panels, err := NewRunner(4).Evaluate(context.Background(), reg, hist, dates, []domain.AssetID{0, 1})
	require.NoError(t, err)

	panel := panels["momentum_3"]
	require.NotNil(t, panel)

	for _, d := range []domain.Date{dayMs(1), dayMs(2)} {
		_, ok := panel.Get(d, 0)
		assert.False(t, ok, "expected absent score on early date %d", d)
		_, ok = panel.Get(d, 1)
		assert.False(t, ok)
	}

	// Asset 0 grows 10% per day: window return = 1.1^2 - 1 = 0.21
	for _, d := range []domain.Date{dayMs(3), dayMs(4), dayMs(5)} {
		v, ok := panel.Get(d, 0)
		require.True(t, ok, "expected score on date %d", d)
		assert.InDelta(t, 0.21, v, 1e-12)

		// Asset 1 shrinks 10% per day: 0.9^2 - 1 = -0.19
		v, ok = panel.Get(d, 1)
		require.True(t, ok)
		assert.InDelta(t, -0.19, v, 1e-12)
	}
}

func TestEvaluate_ParallelMatchesSequential(t *testing.T) {
	hist, dates := fiveDayHistory(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(Momentum(2)))
	require.NoError(t, reg.Register(Reversal(3)))
	require.NoError(t, reg.Register(TrailingVol(4)))

	assets := []domain.AssetID{0, 1}
	runner := NewRunner(8)

	parallel, err := runner.Evaluate(context.Background(), reg, hist, dates, assets)
	require.NoError(t, err)
	sequential, err := runner.EvaluateSequential(reg, hist, dates, assets)
	require.NoError(t, err)

	require.Equal(t, len(sequential), len(parallel))
	for id, want := range sequential {
		got := parallel[id]
		require.NotNil(t, got, "missing panel for %s", id)
		assert.Equal(t, want.Dates(), got.Dates(), "factor %s", id)
		for _, d := range want.Dates() {
			assert.Equal(t, want.Row(d), got.Row(d), "factor %s date %d", id, d)
		}
	}
}

func TestEvaluate_LookbackLongerThanHistory(t *testing.T) {
	// A misconfigured lookback degrades to "insufficient data" everywhere,
	// never an error.
	hist, dates := fiveDayHistory(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register(Momentum(50)))

	panels, err := NewRunner(2).Evaluate(context.Background(), reg, hist, dates, []domain.AssetID{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, panels["momentum_50"].Len())
}

func TestEvaluate_FrequencySkipsSessions(t *testing.T) {
	hist, dates := fiveDayHistory(t)
	reg := NewRegistry()
	def := Momentum(2)
	def.Frequency = 2
	require.NoError(t, reg.Register(def))

	panels, err := NewRunner(2).Evaluate(context.Background(), reg, hist, dates, []domain.AssetID{0})
	require.NoError(t, err)

	panel := panels["momentum_2"]
	// Sessions 0, 2, 4 are due; lookback 2 rules out session 0.
	assert.Equal(t, []domain.Date{dayMs(3), dayMs(5)}, panel.Dates())
}

func TestRegistry_Validation(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(domain.FactorDefinition{ID: "x", Lookback: 0, Score: Momentum(2).Score})
	require.Error(t, err)

	err = reg.Register(domain.FactorDefinition{ID: "x", Lookback: 2})
	assert.ErrorIs(t, err, ErrNilScoreFunc)

	require.NoError(t, reg.Register(Momentum(2)))
	err = reg.Register(Momentum(2))
	assert.ErrorIs(t, err, ErrDuplicateFactor)

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, domain.FactorID("momentum_2"), list[0].ID)
}

func TestFlatten_OrderedRows(t *testing.T) {
	panel := domain.NewPanel[float64]()
	require.NoError(t, panel.Set(dayMs(2), 1, 0.2))
	require.NoError(t, panel.Set(dayMs(1), 0, 0.1))
	require.NoError(t, panel.Set(dayMs(1), 1, 0.15))

	rows := Flatten("momentum_3", panel)
	require.Len(t, rows, 3)
	assert.Equal(t, dayMs(1), rows[0].Date)
	assert.Equal(t, domain.AssetID(0), rows[0].Asset)
	assert.Equal(t, dayMs(1), rows[1].Date)
	assert.Equal(t, domain.AssetID(1), rows[1].Asset)
	assert.Equal(t, dayMs(2), rows[2].Date)
}
