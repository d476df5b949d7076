package factor

import (
	"context"
	"runtime"
	"sort"

	"factorlab/internal/domain"
)

// Runner evaluates registered factors over the (date, asset) grid.
//
// Scoring functions are pure per-asset computations, so evaluation is
// parallel across dates: each worker owns whole dates and produces that
// date's cross-sections privately; a single merger then writes them into the
// output panels. No two invocations share a (date, asset, factor) cell, and
// parallel and sequential evaluation produce identical panels.
type Runner struct {
	workers int
}

// NewRunner creates a Runner. workers <= 0 selects GOMAXPROCS.
func NewRunner(workers int) *Runner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{workers: workers}
}

// dateResult carries one date's cross-sections for all factors.
type dateResult struct {
	dateIdx int
	rows    map[domain.FactorID]map[domain.AssetID]float64
}

// Evaluate computes one panel per registered factor over the given dates and
// assets. Dates are processed in ascending order of the provided slice after
// sorting. A factor with Frequency f is evaluated on every f-th session,
// counted from the first date. Assets whose window is shorter than the
// factor's lookback produce an absent cell, never a zero; a lookback longer
// than the whole history degrades to all-absent early dates rather than an
// error.
func (r *Runner) Evaluate(
	ctx context.Context,
	reg *Registry,
	hist *domain.History,
	dates []domain.Date,
	assets []domain.AssetID,
) (map[domain.FactorID]*domain.Panel[float64], error) {
	defs := reg.List()
	ordered := domain.SortedDates(dates)

	panels := make(map[domain.FactorID]*domain.Panel[float64], len(defs))
	for _, def := range defs {
		panels[def.ID] = domain.NewPanel[float64]()
	}
	if len(ordered) == 0 || len(defs) == 0 {
		return panels, nil
	}

	results := make([]*dateResult, len(ordered))
	jobs := make(chan int)
	done := make(chan error, r.workers)

	for w := 0; w < r.workers; w++ {
		go func() {
			for idx := range jobs {
				results[idx] = evaluateDate(defs, hist, ordered, idx, assets)
			}
			done <- nil
		}()
	}

	feed := func() error {
		defer close(jobs)
		for idx := range ordered {
			select {
			case jobs <- idx:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	feedErr := feed()
	for w := 0; w < r.workers; w++ {
		<-done
	}
	if feedErr != nil {
		return nil, feedErr
	}

	// Merge in ascending date order. This is the only write path into the
	// shared panels, so the panels need no internal locking.
	for idx, d := range ordered {
		res := results[idx]
		if res == nil {
			continue
		}
		for factorID, row := range res.rows {
			if len(row) == 0 {
				continue
			}
			if err := panels[factorID].SetRow(d, row); err != nil {
				return nil, err
			}
		}
	}
	return panels, nil
}

// evaluateDate scores every factor due on one date across the asset list.
func evaluateDate(
	defs []domain.FactorDefinition,
	hist *domain.History,
	ordered []domain.Date,
	dateIdx int,
	assets []domain.AssetID,
) *dateResult {
	date := ordered[dateIdx]
	res := &dateResult{dateIdx: dateIdx, rows: make(map[domain.FactorID]map[domain.AssetID]float64)}

	for _, def := range defs {
		if dateIdx%def.Frequency != 0 {
			continue
		}
		var row map[domain.AssetID]float64
		for _, asset := range assets {
			w, ok := hist.Window(asset, date, def.Lookback)
			if !ok {
				continue // insufficient lookback: cell stays absent
			}
			score, ok := def.Score(asset, date, w)
			if !ok {
				continue
			}
			if row == nil {
				row = make(map[domain.AssetID]float64)
			}
			row[asset] = score
		}
		if row != nil {
			res.rows[def.ID] = row
		}
	}
	return res
}

// EvaluateSequential computes the same panels on the calling goroutine. It
// exists for deterministic comparison against the parallel path.
func (r *Runner) EvaluateSequential(
	reg *Registry,
	hist *domain.History,
	dates []domain.Date,
	assets []domain.AssetID,
) (map[domain.FactorID]*domain.Panel[float64], error) {
	defs := reg.List()
	ordered := domain.SortedDates(dates)

	panels := make(map[domain.FactorID]*domain.Panel[float64], len(defs))
	for _, def := range defs {
		panels[def.ID] = domain.NewPanel[float64]()
	}
	for idx, d := range ordered {
		res := evaluateDate(defs, hist, ordered, idx, assets)
		for factorID, row := range res.rows {
			if err := panels[factorID].SetRow(d, row); err != nil {
				return nil, err
			}
		}
	}
	return panels, nil
}

// Flatten converts a factor panel into storage rows ordered by date then
// asset, the shape the factor-score timeseries store ingests.
func Flatten(id domain.FactorID, panel *domain.Panel[float64]) []domain.FactorScore {
	var out []domain.FactorScore
	for _, d := range panel.Dates() {
		assets := panel.Assets(d)
		sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
		for _, a := range assets {
			v, _ := panel.Get(d, a)
			out = append(out, domain.FactorScore{Factor: id, Date: d, Asset: a, Score: v})
		}
	}
	return out
}
