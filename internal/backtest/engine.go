package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"factorlab/internal/calendar"
	"factorlab/internal/domain"
	"factorlab/internal/execution"
)

// Result is the full output of one simulation.
type Result struct {
	Records []domain.PerformanceRecord
	Fills   []domain.Fill
}

// Engine drives the daily event loop. Dates are processed strictly in
// ascending order; the loop never runs concurrently because every step
// reads the ledger state the previous date produced.
type Engine struct {
	model *execution.Model
	log   zerolog.Logger
}

// NewEngine wires a cost model into an engine.
func NewEngine(model *execution.Model, log zerolog.Logger) *Engine {
	return &Engine{model: model, log: log}
}

// Run simulates the target panel over the calendar starting from
// initialCapital. With close fills each target date trades at its own
// close; with next-open fills a date's targets execute at the following
// session's open. Every processed session appends exactly one
// PerformanceRecord, trades or not.
func (e *Engine) Run(
	ctx context.Context,
	hist *domain.History,
	cal *calendar.Calendar,
	targets *domain.Panel[float64],
	initialCapital float64,
) (*Result, error) {
	if initialCapital <= 0 {
		return nil, &domain.ConfigError{Option: "initial_capital", Reason: "must be > 0"}
	}
	targetDates := targets.Dates()
	if len(targetDates) == 0 {
		return &Result{}, nil
	}
	for _, d := range targetDates {
		if !cal.Contains(d) {
			return nil, &domain.ConsistencyError{
				Op: "backtest.run", Date: d,
				Reason: "target date is not a trading session",
			}
		}
	}

	nextOpen := e.model.Options().FillTiming == domain.FillAtNextOpen
	sessions := e.sessionSpan(cal, targetDates, nextOpen)

	e.log.Info().
		Int("sessions", len(sessions)).
		Float64("initial_capital", initialCapital).
		Str("fill_timing", string(e.model.Options().FillTiming)).
		Msg("backtest started")

	ledger := NewLedger(initialCapital)
	result := &Result{Records: make([]domain.PerformanceRecord, 0, len(sessions))}
	prevEquity := initialCapital
	var pending map[domain.AssetID]float64

	for _, d := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest interrupted: %w", err)
		}

		var row map[domain.AssetID]float64
		if nextOpen {
			row, pending = pending, nil
		} else {
			row = targets.Row(d)
		}

		var fills []domain.Fill
		var costs domain.CostBreakdown
		if row != nil {
			var err error
			fills, costs, err = e.trade(ledger, hist, d, row, nextOpen)
			if err != nil {
				return nil, err
			}
			result.Fills = append(result.Fills, fills...)
		}

		equity, ok := ledger.MarkValue(func(a domain.AssetID) (float64, bool) {
			return hist.CloseAsOf(a, d)
		})
		if !ok {
			return nil, &domain.ConsistencyError{
				Op: "backtest.mark", Date: d,
				Reason: "held asset has no price history at or before the session",
			}
		}

		pnl := equity - prevEquity
		turnover := 0.0
		notional := 0.0
		for _, f := range fills {
			notional += f.Notional
		}
		if prevEquity > 0 {
			turnover = notional / prevEquity
		}
		peak, drawdown := ledger.Commit(equity)

		result.Records = append(result.Records, domain.PerformanceRecord{
			Date:         d,
			Equity:       equity,
			PnL:          pnl,
			GrossPnL:     pnl + costs.Total(),
			Turnover:     turnover,
			SlippageCost: costs.Slippage,
			SpreadCost:   costs.Spread,
			TotalCost:    costs.Total(),
			PeakEquity:   peak,
			Drawdown:     drawdown,
		})
		prevEquity = equity

		if nextOpen {
			if r := targets.Row(d); r != nil {
				pending = r
			}
		}
	}

	last := result.Records[len(result.Records)-1]
	e.log.Info().
		Float64("final_equity", last.Equity).
		Float64("max_drawdown", MaxDrawdown(result.Records)).
		Int("fills", len(result.Fills)).
		Msg("backtest finished")
	return result, nil
}

// trade executes one date's rebalance: build fill prices, size against the
// pre-trade mark at those prices, and settle the fills into the ledger.
func (e *Engine) trade(
	ledger *Ledger,
	hist *domain.History,
	d domain.Date,
	row map[domain.AssetID]float64,
	atOpen bool,
) ([]domain.Fill, domain.CostBreakdown, error) {
	prev := ledger.Positions()
	prices := make(map[domain.AssetID]float64, len(prev)+len(row))
	priceOf := func(a domain.AssetID) (float64, bool) {
		var p float64
		var ok bool
		if atOpen {
			p, ok = hist.Open(a, d)
		} else {
			p, ok = hist.Close(a, d)
		}
		if !ok {
			// An asset can miss a session; trade at the last known close.
			p, ok = hist.CloseAsOf(a, d)
		}
		return p, ok
	}
	for a := range prev {
		if p, ok := priceOf(a); ok {
			prices[a] = p
		}
	}
	for a := range row {
		if p, ok := priceOf(a); ok {
			prices[a] = p
		}
	}

	equity, ok := ledger.MarkValue(func(a domain.AssetID) (float64, bool) {
		p, ok := prices[a]
		return p, ok
	})
	if !ok {
		return nil, domain.CostBreakdown{}, &domain.ConsistencyError{
			Op: "backtest.size", Date: d,
			Reason: "held asset has no fill price",
		}
	}

	fills, costs, positions, err := e.model.Apply(d, prev, row, prices, equity)
	if err != nil {
		return nil, domain.CostBreakdown{}, err
	}
	ledger.Settle(fills, costs, positions)
	return fills, costs, nil
}

// sessionSpan returns the calendar sessions the run covers: first target
// date through last target date, plus one extra session when next-open
// timing leaves a rebalance pending.
func (e *Engine) sessionSpan(cal *calendar.Calendar, targetDates []domain.Date, nextOpen bool) []domain.Date {
	first := targetDates[0]
	last := targetDates[len(targetDates)-1]
	if nextOpen {
		if d, ok := cal.Shift(last, 1); ok {
			last = d
		}
	}
	return cal.Range(first, last)
}

// Summarize condenses a finished run into its persisted metadata row.
func Summarize(runID, configYAML string, createdAtMs int64, initialCapital float64, records []domain.PerformanceRecord) domain.BacktestRun {
	run := domain.BacktestRun{
		RunID:          runID,
		CreatedAtMs:    createdAtMs,
		ConfigYAML:     configYAML,
		InitialCapital: initialCapital,
		Days:           len(records),
	}
	if len(records) == 0 {
		run.FinalEquity = initialCapital
		return run
	}
	run.DateFrom = records[0].Date
	run.DateTo = records[len(records)-1].Date
	run.FinalEquity = records[len(records)-1].Equity
	if initialCapital > 0 {
		run.TotalReturn = run.FinalEquity/initialCapital - 1
	}
	run.MaxDrawdown = MaxDrawdown(records)
	return run
}
