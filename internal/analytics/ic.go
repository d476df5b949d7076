package analytics

import (
	"math"
	"sort"

	"factorlab/internal/domain"
)

// minICPairs is the smallest cross-section an IC is computed on. Dates with
// fewer complete (factor, return) pairs are excluded from IC series, not
// treated as IC = 0.
const minICPairs = 2

// ICSeries is a dated series of information coefficients.
type ICSeries struct {
	Dates  []domain.Date
	Values []float64
	Pairs  []int // complete pairs behind each observation
}

// Len returns the number of observations.
func (s ICSeries) Len() int { return len(s.Values) }

// pairedValues collects the complete (factor, return) pairs for one date,
// aligned in ascending asset order for determinism.
func pairedValues(factors, returns map[domain.AssetID]float64) ([]float64, []float64) {
	assets := make([]domain.AssetID, 0, len(factors))
	for a := range factors {
		if _, ok := returns[a]; ok {
			assets = append(assets, a)
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	xs := make([]float64, len(assets))
	ys := make([]float64, len(assets))
	for i, a := range assets {
		xs[i] = factors[a]
		ys[i] = returns[a]
	}
	return xs, ys
}

// pearson computes the Pearson correlation. The boolean is false when either
// series is degenerate (fewer than minICPairs observations or zero variance).
func pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n < minICPairs {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}

// SpearmanIC computes the rank correlation between one date's factor
// cross-section and forward returns, with ties broken by average rank.
// Invariant under strictly monotonic transforms of either input.
func SpearmanIC(factors, returns map[domain.AssetID]float64) (float64, bool) {
	xs, ys := pairedValues(factors, returns)
	if len(xs) < minICPairs {
		return 0, false
	}
	return pearson(averageRanks(xs), averageRanks(ys))
}

// PearsonIC computes the linear correlation between one date's factor
// cross-section and forward returns. Pearson correlation is scale and shift
// invariant, so z-scoring the inputs first would not change the result.
func PearsonIC(factors, returns map[domain.AssetID]float64) (float64, bool) {
	xs, ys := pairedValues(factors, returns)
	return pearson(xs, ys)
}

// ICKind selects the correlation estimator for an IC series.
type ICKind int

// IC estimator constants.
const (
	Spearman ICKind = iota
	Pearson
)

// ComputeICSeries walks the factor panel's dates in ascending order and
// correlates each cross-section against the forward-return panel. Degenerate
// dates are excluded from the series.
func ComputeICSeries(factorPanel, returnPanel *domain.Panel[float64], kind ICKind) ICSeries {
	var series ICSeries
	for _, d := range factorPanel.Dates() {
		factors := factorPanel.Row(d)
		returns := returnPanel.Row(d)
		if len(factors) == 0 || len(returns) == 0 {
			continue
		}

		var ic float64
		var ok bool
		switch kind {
		case Spearman:
			ic, ok = SpearmanIC(factors, returns)
		default:
			ic, ok = PearsonIC(factors, returns)
		}
		if !ok {
			continue
		}

		xs, _ := pairedValues(factors, returns)
		series.Dates = append(series.Dates, d)
		series.Values = append(series.Values, ic)
		series.Pairs = append(series.Pairs, len(xs))
	}
	return series
}

// InformationRatio returns mean(IC)/std(IC) using the sample standard
// deviation. The boolean is false when the series has fewer than 2
// observations or zero variance; callers report that as missing, never as
// zero or infinity.
func InformationRatio(series ICSeries) (float64, bool) {
	std, ok := sampleStd(series.Values)
	if !ok || std == 0 {
		return 0, false
	}
	return mean(series.Values) / std, true
}
