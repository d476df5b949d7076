package analytics

import (
	"math"
	"sort"

	"factorlab/internal/domain"
)

// regressors in the per-date model: intercept + factor slope.
const olsRegressors = 2

// DateRegression is the per-date OLS of forward return on factor value.
type DateRegression struct {
	Date      domain.Date
	Coef      float64 // slope on the factor value
	Intercept float64
	StdErr    float64 // homoscedastic OLS standard error of the slope
	TStat     float64
	N         int

	// Residuals are aligned with Assets for downstream diagnostics.
	Assets    []domain.AssetID
	Residuals []float64
}

// SkippedDate records a degenerate regression date and why it was skipped.
type SkippedDate struct {
	Date   domain.Date
	Reason string
}

// RegressionResult holds every date's regression plus the skipped dates.
type RegressionResult struct {
	Dates   []DateRegression
	Skipped []SkippedDate
}

// MeanCoef returns the average slope across regressed dates; 0 when empty.
func (r RegressionResult) MeanCoef() float64 {
	if len(r.Dates) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range r.Dates {
		sum += d.Coef
	}
	return sum / float64(len(r.Dates))
}

// MeanTStat returns the average t-statistic across regressed dates.
func (r RegressionResult) MeanTStat() float64 {
	if len(r.Dates) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range r.Dates {
		sum += d.TStat
	}
	return sum / float64(len(r.Dates))
}

// CrossSectionalRegression runs, for each date, ordinary least squares of
// forward return on factor value across the asset cross-section.
//
// Dates with fewer observations than regressors+1 or with zero factor
// variance are recorded in Skipped rather than silently dropped.
// Standardizing the factor first rescales Coef/StdErr identically and leaves
// TStat unchanged, so the regression runs on raw values.
func CrossSectionalRegression(factorPanel, returnPanel *domain.Panel[float64]) RegressionResult {
	var result RegressionResult
	for _, date := range factorPanel.Dates() {
		factors := factorPanel.Row(date)
		returns := returnPanel.Row(date)

		assets := make([]domain.AssetID, 0, len(factors))
		for a := range factors {
			if _, ok := returns[a]; ok {
				assets = append(assets, a)
			}
		}
		sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

		n := len(assets)
		if n < olsRegressors+1 {
			result.Skipped = append(result.Skipped, SkippedDate{Date: date, Reason: "too few observations"})
			continue
		}

		xs := make([]float64, n)
		ys := make([]float64, n)
		for i, a := range assets {
			xs[i] = factors[a]
			ys[i] = returns[a]
		}

		mx, my := mean(xs), mean(ys)
		var sxx, sxy float64
		for i := 0; i < n; i++ {
			dx := xs[i] - mx
			sxx += dx * dx
			sxy += dx * (ys[i] - my)
		}
		if sxx == 0 {
			result.Skipped = append(result.Skipped, SkippedDate{Date: date, Reason: "zero factor variance"})
			continue
		}

		beta := sxy / sxx
		alpha := my - beta*mx

		residuals := make([]float64, n)
		var ssr float64
		for i := 0; i < n; i++ {
			residuals[i] = ys[i] - alpha - beta*xs[i]
			ssr += residuals[i] * residuals[i]
		}

		sigma2 := ssr / float64(n-olsRegressors)
		stdErr := math.Sqrt(sigma2 / sxx)
		tStat := 0.0
		if stdErr > 0 {
			tStat = beta / stdErr
		}

		result.Dates = append(result.Dates, DateRegression{
			Date:      date,
			Coef:      beta,
			Intercept: alpha,
			StdErr:    stdErr,
			TStat:     tStat,
			N:         n,
			Assets:    assets,
			Residuals: residuals,
		})
	}
	return result
}
