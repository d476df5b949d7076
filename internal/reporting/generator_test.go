package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/domain"
	"factorlab/internal/storage/memory"
)

func seededStores(t *testing.T) (*memory.RunStore, *memory.PerformanceRecordStore, *memory.FactorStatStore) {
	t.Helper()
	ctx := context.Background()

	runs := memory.NewRunStore()
	require.NoError(t, runs.Insert(ctx, &domain.BacktestRun{
		RunID:          "run-1",
		CreatedAtMs:    1_700_000_000_000,
		DateFrom:       100,
		DateTo:         300,
		InitialCapital: 1_000_000,
		FinalEquity:    1_050_000,
		TotalReturn:    0.05,
		MaxDrawdown:    0.02,
		Days:           3,
	}))

	records := memory.NewPerformanceRecordStore()
	require.NoError(t, records.InsertBulk(ctx, "run-1", []domain.PerformanceRecord{
		{Date: 100, Equity: 1_010_000, Turnover: 1.0, TotalCost: 500},
		{Date: 200, Equity: 1_030_000, Turnover: 0.2, TotalCost: 100},
		{Date: 300, Equity: 1_050_000, Turnover: 0.3, TotalCost: 150},
	}))

	stats := memory.NewFactorStatStore()
	require.NoError(t, stats.InsertBulk(ctx, "run-1", []domain.FactorStat{
		{Factor: "momentum_20", Date: 100, Horizon: 1, SpearmanIC: 0.10, PearsonIC: 0.08, N: 40},
		{Factor: "momentum_20", Date: 200, Horizon: 1, SpearmanIC: 0.20, PearsonIC: 0.16, N: 40},
		{Factor: "momentum_20", Date: 100, Horizon: 5, SpearmanIC: 0.04, PearsonIC: 0.03, N: 40},
		{Factor: "reversal_5", Date: 100, Horizon: 1, SpearmanIC: -0.05, PearsonIC: -0.04, N: 40},
	}))

	return runs, records, stats
}

func TestGenerator_FullReport(t *testing.T) {
	runs, records, stats := seededStores(t)

	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator(runs, records, stats).WithClock(func() time.Time { return fixed })

	report, err := gen.Generate(context.Background(), "run-1",
		[]domain.FactorID{"reversal_5", "momentum_20"}, 1)
	require.NoError(t, err)

	assert.Equal(t, fixed, report.GeneratedAt)
	assert.Equal(t, 2, report.FactorCount)

	require.NotNil(t, report.Run)
	assert.Equal(t, 750.0, report.Run.TotalCosts)
	assert.InDelta(t, 0.5, report.Run.AvgTurnover, 1e-12)
	assert.Equal(t, 0.05, report.Run.TotalReturn)

	// Factors come back sorted regardless of input order.
	require.Len(t, report.FactorSummaries, 2)
	mom := report.FactorSummaries[0]
	assert.Equal(t, domain.FactorID("momentum_20"), mom.Factor)
	assert.Equal(t, 2, mom.Dates)
	assert.InDelta(t, 0.15, mom.MeanSpearman, 1e-12)
	assert.InDelta(t, 0.12, mom.MeanPearson, 1e-12)
	require.NotNil(t, mom.SpearmanIR)
	// mean 0.15, sample std of {0.10, 0.20} is 0.0707...
	assert.InDelta(t, 2.1213, *mom.SpearmanIR, 1e-4)

	// Single observation: IR undefined.
	rev := report.FactorSummaries[1]
	assert.Equal(t, 1, rev.Dates)
	assert.Nil(t, rev.SpearmanIR)

	// Decay sorted by (factor, horizon).
	require.Len(t, report.Decay, 3)
	assert.Equal(t, DecayRow{Factor: "momentum_20", Horizon: 1, MeanIC: 0.15, Dates: 2}, report.Decay[0])
	assert.Equal(t, 5, report.Decay[1].Horizon)
	assert.Equal(t, domain.FactorID("reversal_5"), report.Decay[2].Factor)
}

func TestGenerator_ResearchOnlyRun(t *testing.T) {
	runs, records, stats := seededStores(t)
	gen := NewGenerator(runs, records, stats)

	report, err := gen.Generate(context.Background(), "no-such-run", []domain.FactorID{"momentum_20"}, 1)
	require.NoError(t, err)
	assert.Nil(t, report.Run)

	md := RenderMarkdown(report)
	assert.NotContains(t, md, "## Backtest Summary")
	assert.Contains(t, md, "## Factor Summary")
}

func TestRenderMarkdown_Sections(t *testing.T) {
	runs, records, stats := seededStores(t)
	gen := NewGenerator(runs, records, stats)

	report, err := gen.Generate(context.Background(), "run-1", []domain.FactorID{"momentum_20", "reversal_5"}, 1)
	require.NoError(t, err)

	md := RenderMarkdown(report)
	assert.Contains(t, md, "# Factor Research Report")
	assert.Contains(t, md, "## Backtest Summary")
	assert.Contains(t, md, "| momentum_20 | 1 | 2 |")
	assert.Contains(t, md, "n/a") // undefined IR renders as n/a
	assert.Contains(t, md, "## IC Decay")
}

func TestRenderCSV(t *testing.T) {
	stats := []domain.FactorStat{
		{Factor: "momentum_20", Date: 100, Horizon: 1, SpearmanIC: 0.1, PearsonIC: 0.08, N: 40},
	}
	csv := RenderStatsCSV(stats)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "factor,date,horizon,spearman_ic,pearson_ic,n", lines[0])
	assert.Equal(t, "momentum_20,100,1,0.100000,0.080000,40", lines[1])

	records := []domain.PerformanceRecord{{Date: 100, Equity: 1000, PnL: 10, Turnover: 0.5}}
	out := RenderRecordsCSV(records)
	assert.True(t, strings.HasPrefix(out, "date,equity,pnl,"))
	assert.Contains(t, out, "100,1000.000000,10.000000")

	decay := RenderDecayCSV([]DecayRow{{Factor: "momentum_20", Horizon: 5, MeanIC: 0.04, Dates: 10}})
	assert.Contains(t, decay, "momentum_20,5,0.040000,10")
}

func TestParquetWriter_RoundTrip(t *testing.T) {
	w := NewParquetWriter(t.TempDir())

	scores := []domain.FactorScore{
		{Factor: "momentum_20", Date: 100, Asset: 0, Score: 0.5},
		{Factor: "momentum_20", Date: 100, Asset: 1, Score: -0.5},
	}
	require.NoError(t, w.WriteScores("run-1", "momentum_20", scores))

	gotScores, err := w.ReadScores("run-1", "momentum_20")
	require.NoError(t, err)
	assert.Equal(t, scores, gotScores)

	records := []domain.PerformanceRecord{
		{Date: 100, Equity: 1_010_000, PnL: 10_000, GrossPnL: 10_500, Turnover: 1.0,
			SlippageCost: 300, SpreadCost: 200, TotalCost: 500, PeakEquity: 1_010_000},
	}
	require.NoError(t, w.WriteRecords("run-1", records))

	gotRecords, err := w.ReadRecords("run-1")
	require.NoError(t, err)
	assert.Equal(t, records, gotRecords)

	// Unwritten factor reads fail.
	_, err = w.ReadScores("run-1", "reversal_5")
	assert.Error(t, err)
}
