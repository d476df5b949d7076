package reporting

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"factorlab/internal/domain"
	"factorlab/internal/storage"
)

// Generator produces reports from stored run data.
type Generator struct {
	runStore    storage.RunStore
	recordStore storage.PerformanceRecordStore
	statStore   storage.FactorStatStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(
	runStore storage.RunStore,
	recordStore storage.PerformanceRecordStore,
	statStore storage.FactorStatStore,
) *Generator {
	return &Generator{
		runStore:    runStore,
		recordStore: recordStore,
		statStore:   statStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for one run. factors names the factors whose
// stats were persisted; baseHorizon selects the summary horizon.
func (g *Generator) Generate(ctx context.Context, runID string, factors []domain.FactorID, baseHorizon int) (*Report, error) {
	run, err := g.generateRunSummary(ctx, runID)
	if err != nil {
		return nil, err
	}

	sorted := make([]domain.FactorID, len(factors))
	copy(sorted, factors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	summaries := make([]FactorSummaryRow, 0, len(sorted))
	var decay []DecayRow
	for _, id := range sorted {
		stats, err := g.statStore.GetByFactor(ctx, runID, id)
		if err != nil {
			return nil, err
		}

		summaries = append(summaries, summarizeFactor(id, stats, baseHorizon))
		decay = append(decay, decayRows(id, stats)...)
	}

	return &Report{
		GeneratedAt:     g.now(),
		RunID:           runID,
		FactorCount:     len(sorted),
		Run:             run,
		FactorSummaries: summaries,
		Decay:           decay,
	}, nil
}

// generateRunSummary loads the run and its accounting trail. A missing run
// means a research-only report; the backtest section stays empty.
func (g *Generator) generateRunSummary(ctx context.Context, runID string) (*RunSummaryRow, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records, err := g.recordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	totalCosts := 0.0
	avgTurnover := 0.0
	for _, r := range records {
		totalCosts += r.TotalCost
		avgTurnover += r.Turnover
	}
	if len(records) > 0 {
		avgTurnover /= float64(len(records))
	}

	return &RunSummaryRow{
		RunID:          run.RunID,
		DateFrom:       run.DateFrom,
		DateTo:         run.DateTo,
		Days:           run.Days,
		InitialCapital: run.InitialCapital,
		FinalEquity:    run.FinalEquity,
		TotalReturn:    run.TotalReturn,
		MaxDrawdown:    run.MaxDrawdown,
		TotalCosts:     totalCosts,
		AvgTurnover:    avgTurnover,
	}, nil
}

// summarizeFactor aggregates one factor's stats at the base horizon.
func summarizeFactor(id domain.FactorID, stats []domain.FactorStat, baseHorizon int) FactorSummaryRow {
	var spearman, pearson []float64
	for _, s := range stats {
		if s.Horizon != baseHorizon {
			continue
		}
		spearman = append(spearman, s.SpearmanIC)
		pearson = append(pearson, s.PearsonIC)
	}

	row := FactorSummaryRow{
		Factor:       id,
		Horizon:      baseHorizon,
		Dates:        len(spearman),
		MeanSpearman: mean(spearman),
		MeanPearson:  mean(pearson),
	}
	if ir, ok := informationRatio(spearman); ok {
		row.SpearmanIR = &ir
	}
	if ir, ok := informationRatio(pearson); ok {
		row.PearsonIR = &ir
	}
	return row
}

// decayRows groups one factor's stats by horizon into mean-IC points.
func decayRows(id domain.FactorID, stats []domain.FactorStat) []DecayRow {
	byHorizon := make(map[int][]float64)
	for _, s := range stats {
		byHorizon[s.Horizon] = append(byHorizon[s.Horizon], s.SpearmanIC)
	}

	horizons := make([]int, 0, len(byHorizon))
	for h := range byHorizon {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)

	rows := make([]DecayRow, 0, len(horizons))
	for _, h := range horizons {
		vals := byHorizon[h]
		rows = append(rows, DecayRow{Factor: id, Horizon: h, MeanIC: mean(vals), Dates: len(vals)})
	}
	return rows
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// informationRatio returns mean/stddev of the series; undefined below 2
// observations or at zero variance.
func informationRatio(vals []float64) (float64, bool) {
	if len(vals) < 2 {
		return 0, false
	}
	m := mean(vals)
	ss := 0.0
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(vals)-1))
	if sd == 0 {
		return 0, false
	}
	return m / sd, true
}
