// Package execution converts target weights into share trades and charges
// the configured transaction costs. The model always fills in full; partial
// fills and market impact beyond linear slippage are out of scope.
package execution

import (
	"math"
	"sort"

	"factorlab/internal/domain"
)

// Model prices weight deltas into fills. It is timing-agnostic: the caller
// supplies whichever prices its fill timing selects.
type Model struct {
	opts domain.CostOptions
}

// NewModel validates the cost options and returns a model.
func NewModel(opts domain.CostOptions) (*Model, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Model{opts: opts}, nil
}

// Options returns the model's cost options.
func (m *Model) Options() domain.CostOptions { return m.opts }

// Apply moves the previous share positions to the target weights at the
// given prices. Target weights are sized against equity, converted to
// shares, and the signed deltas become fills. Costs are charged per fill as
// slippage_k * |notional| plus the half-spread in basis points; both are
// reported on the fill and aggregated into the breakdown.
//
// Every asset in the union of prev and targets must have a price; a missing
// price means upstream data alignment broke, which is a ConsistencyError,
// not a skipped trade.
func (m *Model) Apply(
	date domain.Date,
	prev map[domain.AssetID]float64,
	targets map[domain.AssetID]float64,
	prices map[domain.AssetID]float64,
	equity float64,
) ([]domain.Fill, domain.CostBreakdown, map[domain.AssetID]float64, error) {
	assets := tradeUniverse(prev, targets)

	fills := make([]domain.Fill, 0, len(assets))
	next := make(map[domain.AssetID]float64, len(targets))
	var costs domain.CostBreakdown

	for _, a := range assets {
		price, ok := prices[a]
		if !ok || price <= 0 {
			return nil, domain.CostBreakdown{}, nil, &domain.ConsistencyError{
				Op: "execution.apply", Date: date, Asset: a,
				Reason: "no fill price for a traded asset",
			}
		}

		targetShares := targets[a] * equity / price
		delta := targetShares - prev[a]
		if targetShares != 0 {
			next[a] = targetShares
		}
		if delta == 0 {
			continue
		}

		notional := math.Abs(delta) * price
		fill := domain.Fill{
			Asset:        a,
			Date:         date,
			Quantity:     delta,
			Price:        price,
			Notional:     notional,
			SlippageCost: m.opts.SlippageK * notional,
			SpreadCost:   m.opts.HalfSpreadBps / 10_000 * notional,
		}
		fills = append(fills, fill)
		costs.Slippage += fill.SlippageCost
		costs.Spread += fill.SpreadCost
	}
	return fills, costs, next, nil
}

// tradeUniverse returns the union of held and targeted assets in ascending
// ID order, so fills come out deterministic.
func tradeUniverse(prev, targets map[domain.AssetID]float64) []domain.AssetID {
	seen := make(map[domain.AssetID]struct{}, len(prev)+len(targets))
	for a := range prev {
		seen[a] = struct{}{}
	}
	for a := range targets {
		seen[a] = struct{}{}
	}
	out := make([]domain.AssetID, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
