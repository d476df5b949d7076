package analytics

import (
	"context"
	"errors"
	"sort"
	"sync"

	"factorlab/internal/calendar"
	"factorlab/internal/domain"
)

// Options configures the evaluation report.
type Options struct {
	// Horizons is the decay-curve horizon range in trading days.
	Horizons []int

	// BaseHorizon is the forward-return horizon for the IC series, IR and
	// regression. Must appear in Horizons.
	BaseHorizon int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Horizons:    []int{1, 5, 10, 20},
		BaseHorizon: 1,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if len(o.Horizons) == 0 {
		return &domain.ConfigError{Option: "forward_horizons", Reason: "at least one horizon required"}
	}
	for _, h := range o.Horizons {
		if h <= 0 {
			return &domain.ConfigError{Option: "forward_horizons", Reason: "horizons must be > 0"}
		}
	}
	if o.BaseHorizon <= 0 {
		return &domain.ConfigError{Option: "base_horizon", Reason: "must be > 0"}
	}
	return nil
}

// FactorReport is the full evaluation of one factor.
type FactorReport struct {
	Factor domain.FactorID

	SpearmanIC ICSeries
	PearsonIC  ICSeries

	// IRs are nil when undefined (fewer than 2 ICs or zero variance).
	SpearmanIR *float64
	PearsonIR  *float64

	Decay      []DecayPoint
	Regression RegressionResult
}

// Report is the statistics hand-off to the reporting collaborator: plain
// tabular structures with no engine-internal state.
type Report struct {
	Factors []FactorReport

	// Covariance of the per-factor Spearman IC series over their common
	// dates; CovarianceOrder names the row/column factors. Nil when fewer
	// than 2 common observations exist.
	Covariance      [][]float64
	CovarianceOrder []domain.FactorID
}

// Evaluator runs the four statistical operations for each factor. The
// operations are read-only and independent of each other, so each factor is
// evaluated on its own goroutine.
type Evaluator struct {
	opts Options
}

// NewEvaluator creates an Evaluator; opts must already be validated.
func NewEvaluator(opts Options) *Evaluator {
	return &Evaluator{opts: opts}
}

// Evaluate builds the statistics report for the given factor panels.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	panels map[domain.FactorID]*domain.Panel[float64],
	hist *domain.History,
	cal *calendar.Calendar,
	assets []domain.AssetID,
) (*Report, error) {
	ids := make([]domain.FactorID, 0, len(panels))
	for id := range panels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	reports := make([]FactorReport, len(ids))
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id domain.FactorID) {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			reports[i], errs[i] = e.evaluateFactor(id, panels[id], hist, cal, assets)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	report := &Report{Factors: reports}
	if len(reports) >= 2 {
		series := make([]ICSeries, len(reports))
		for i, fr := range reports {
			series[i] = fr.SpearmanIC
		}
		cov, err := Covariance(AlignSeries(series))
		switch {
		case err == nil:
			report.Covariance = cov
			report.CovarianceOrder = ids
		case errors.Is(err, domain.ErrInsufficientData):
			// Too few common dates: covariance stays absent.
		default:
			return nil, err
		}
	}
	return report, nil
}

// evaluateFactor computes IC series, IRs, the decay curve and the per-date
// regression for one factor.
func (e *Evaluator) evaluateFactor(
	id domain.FactorID,
	panel *domain.Panel[float64],
	hist *domain.History,
	cal *calendar.Calendar,
	assets []domain.AssetID,
) (FactorReport, error) {
	fr := FactorReport{Factor: id}

	returns, err := ForwardReturns(hist, cal, panel.Dates(), assets, e.opts.BaseHorizon)
	if err != nil {
		return fr, err
	}

	fr.SpearmanIC = ComputeICSeries(panel, returns, Spearman)
	fr.PearsonIC = ComputeICSeries(panel, returns, Pearson)

	if ir, ok := InformationRatio(fr.SpearmanIC); ok {
		fr.SpearmanIR = &ir
	}
	if ir, ok := InformationRatio(fr.PearsonIC); ok {
		fr.PearsonIR = &ir
	}

	fr.Decay, err = DecayCurve(panel, hist, cal, assets, e.opts.Horizons)
	if err != nil {
		return fr, err
	}

	fr.Regression = CrossSectionalRegression(panel, returns)
	return fr, nil
}

// StatRows flattens a factor report into per-date storage rows at the base
// horizon, the shape the factor-stat store ingests.
func StatRows(fr FactorReport, horizon int) []domain.FactorStat {
	pearsonByDate := make(map[domain.Date]float64, len(fr.PearsonIC.Dates))
	for i, d := range fr.PearsonIC.Dates {
		pearsonByDate[d] = fr.PearsonIC.Values[i]
	}
	rows := make([]domain.FactorStat, 0, len(fr.SpearmanIC.Dates))
	for i, d := range fr.SpearmanIC.Dates {
		rows = append(rows, domain.FactorStat{
			Factor:     fr.Factor,
			Date:       d,
			Horizon:    horizon,
			SpearmanIC: fr.SpearmanIC.Values[i],
			PearsonIC:  pearsonByDate[d],
			N:          fr.SpearmanIC.Pairs[i],
		})
	}
	return rows
}
