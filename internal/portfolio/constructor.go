package portfolio

import (
	"factorlab/internal/domain"
	"factorlab/internal/factor"
)

// Constructor maps factor cross-sections to constrained target weights, one
// date at a time, threading the previous weights through for turnover.
type Constructor struct {
	opts domain.PortfolioOptions
	hist *domain.History
}

// NewConstructor validates the options and returns a constructor. The
// history is only consulted for realized volatility under risk scaling and
// may be nil for the other schemes.
func NewConstructor(opts domain.PortfolioOptions, hist *domain.History) (*Constructor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Scheme == domain.WeightRiskScaled && hist == nil {
		return nil, &domain.ConfigError{
			Option: "weighting_scheme",
			Reason: "risk scaling needs a bar history for realized volatility",
		}
	}
	return &Constructor{opts: opts, hist: hist}, nil
}

// Construct runs the three stages for one date: transform, weighting,
// constraints. An empty factor row yields an empty book; a factor
// cross-section is never an error here.
func (c *Constructor) Construct(date domain.Date, row map[domain.AssetID]float64, prev map[domain.AssetID]float64) (map[domain.AssetID]float64, error) {
	signal := Transform(row, c.opts)

	var vols map[domain.AssetID]float64
	if c.opts.Scheme == domain.WeightRiskScaled {
		vols = c.realizedVols(date, signal)
	}

	raw := Weigh(signal, vols, c.opts)
	return EnforceConstraints(raw, prev, c.opts)
}

// BuildTargets constructs targets for every date of a factor panel in
// ascending order, carrying each date's output as the next date's previous
// book. The result panel has one row per input date, possibly empty.
func (c *Constructor) BuildTargets(factorPanel *domain.Panel[float64]) (*domain.Panel[float64], error) {
	targets := domain.NewPanel[float64]()
	prev := map[domain.AssetID]float64{}
	for _, d := range factorPanel.Dates() {
		w, err := c.Construct(d, factorPanel.Row(d), prev)
		if err != nil {
			return nil, err
		}
		if err := targets.SetRow(d, w); err != nil {
			return nil, err
		}
		prev = w
	}
	return targets, nil
}

// realizedVols computes trailing realized volatility per asset as of the
// given date. Assets lacking a full lookback window are left out and fall
// out of the risk-scaled cross-section.
func (c *Constructor) realizedVols(date domain.Date, signal map[domain.AssetID]float64) map[domain.AssetID]float64 {
	vols := make(map[domain.AssetID]float64, len(signal))
	for a := range signal {
		w, ok := c.hist.Window(a, date, c.opts.VolLookback+1)
		if !ok {
			continue
		}
		if v, ok := factor.WindowVol(w); ok {
			vols[a] = v
		}
	}
	return vols
}
