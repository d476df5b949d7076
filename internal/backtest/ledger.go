// Package backtest runs the sequential daily simulation: targets in, trades
// through the cost model, accounting records out. All portfolio state lives
// in the Ledger and is touched by exactly one goroutine.
package backtest

import (
	"math"

	"factorlab/internal/domain"
)

// Ledger is the single-owner account state of a running simulation: cash,
// share positions, and the running drawdown bookkeeping.
type Ledger struct {
	cash      float64
	positions map[domain.AssetID]float64

	equity float64
	peak   float64
}

// NewLedger starts a ledger flat with the given cash balance.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		cash:      initialCapital,
		positions: make(map[domain.AssetID]float64),
		equity:    initialCapital,
		peak:      initialCapital,
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// Equity returns the equity as of the last mark.
func (l *Ledger) Equity() float64 { return l.equity }

// Positions returns a copy of the current share positions.
func (l *Ledger) Positions() map[domain.AssetID]float64 {
	out := make(map[domain.AssetID]float64, len(l.positions))
	for a, q := range l.positions {
		out[a] = q
	}
	return out
}

// Settle books a set of fills: cash moves by the signed trade notional plus
// the full cost of both legs, and the position set is replaced.
func (l *Ledger) Settle(fills []domain.Fill, costs domain.CostBreakdown, positions map[domain.AssetID]float64) {
	for _, f := range fills {
		l.cash -= f.Quantity * f.Price
	}
	l.cash -= costs.Total()
	l.positions = positions
}

// MarkValue prices the current positions with the given marker and returns
// the equity. The marker must produce a price for every held asset; the
// second return value is false when one is missing.
func (l *Ledger) MarkValue(mark func(domain.AssetID) (float64, bool)) (float64, bool) {
	value := l.cash
	for a, q := range l.positions {
		p, ok := mark(a)
		if !ok {
			return 0, false
		}
		value += q * p
	}
	return value, true
}

// Commit records a completed mark, updating equity and the drawdown peak.
// Returns the new peak and the drawdown fraction against it.
func (l *Ledger) Commit(equity float64) (peak, drawdown float64) {
	l.equity = equity
	if equity > l.peak {
		l.peak = equity
	}
	if l.peak > 0 {
		drawdown = (l.peak - equity) / l.peak
	}
	return l.peak, drawdown
}

// MaxDrawdown scans performance records for the deepest drawdown.
func MaxDrawdown(records []domain.PerformanceRecord) float64 {
	worst := 0.0
	for _, r := range records {
		worst = math.Max(worst, r.Drawdown)
	}
	return worst
}
