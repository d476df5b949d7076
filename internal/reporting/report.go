// Package reporting is the output boundary: it loads persisted run data and
// renders it as Markdown, CSV and Parquet artifacts. Nothing here feeds back
// into the engine.
package reporting

import (
	"time"

	"factorlab/internal/domain"
)

// Report is the renderable view of one run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	FactorCount int

	// Run is the backtest summary; nil for research-only runs that never
	// simulated a portfolio.
	Run *RunSummaryRow

	// FactorSummaries holds per-factor statistics at the base horizon,
	// sorted by factor ID.
	FactorSummaries []FactorSummaryRow

	// Decay holds mean-IC rows across all horizons, sorted by
	// (factor, horizon).
	Decay []DecayRow
}

// RunSummaryRow summarizes one backtest's accounting trail.
type RunSummaryRow struct {
	RunID          string
	DateFrom       domain.Date
	DateTo         domain.Date
	Days           int
	InitialCapital float64
	FinalEquity    float64
	TotalReturn    float64
	MaxDrawdown    float64
	TotalCosts     float64
	AvgTurnover    float64
}

// FactorSummaryRow aggregates one factor's IC series at the base horizon.
type FactorSummaryRow struct {
	Factor       domain.FactorID
	Horizon      int
	Dates        int
	MeanSpearman float64
	MeanPearson  float64

	// IRs are nil when undefined (fewer than 2 ICs or zero variance).
	SpearmanIR *float64
	PearsonIR  *float64
}

// DecayRow is one (factor, horizon) point of the decay curve.
type DecayRow struct {
	Factor  domain.FactorID
	Horizon int
	MeanIC  float64
	Dates   int
}
