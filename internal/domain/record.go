package domain

// Fill is one realized trade: the signed share delta that moves a position
// from its previous quantity to the target. Costs are reported separately
// from the fill price so raw versus net PnL reconcile exactly.
type Fill struct {
	Asset        AssetID
	Date         Date
	Quantity     float64 // signed shares traded
	Price        float64 // fill price before costs
	Notional     float64 // |Quantity| * Price
	SlippageCost float64
	SpreadCost   float64
}

// CostBreakdown attributes one date's execution costs by component.
type CostBreakdown struct {
	Slippage float64
	Spread   float64
}

// Total returns the summed cost.
func (c CostBreakdown) Total() float64 {
	return c.Slippage + c.Spread
}

// PerformanceRecord is one row of backtest accounting, produced append-only
// in date order by the backtest engine.
type PerformanceRecord struct {
	Date     Date
	Equity   float64
	PnL      float64 // equity delta net of external cash flows
	GrossPnL float64 // PnL before costs
	Turnover float64 // Σ|trade notional| / prior equity

	SlippageCost float64
	SpreadCost   float64
	TotalCost    float64

	// Drawdown running state.
	PeakEquity float64
	Drawdown   float64 // (peak - equity) / peak, 0 when at a new peak
}

// BacktestRun is the persisted metadata of one completed simulation.
type BacktestRun struct {
	RunID          string
	CreatedAtMs    int64
	ConfigYAML     string // snapshot of the resolved configuration
	DateFrom       Date
	DateTo         Date
	InitialCapital float64
	FinalEquity    float64
	TotalReturn    float64
	MaxDrawdown    float64
	Days           int
}

// FactorStat is one persisted per-date evaluation row for a factor.
type FactorStat struct {
	Factor     FactorID
	Date       Date
	Horizon    int
	SpearmanIC float64
	PearsonIC  float64
	N          int // complete (factor, return) pairs behind the ICs
}
