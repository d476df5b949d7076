package ingest

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"factorlab/internal/calendar"
	"factorlab/internal/domain"
)

// MissingDataPolicy controls what happens when an asset has no bar on a
// session between its first and last observation.
type MissingDataPolicy string

const (
	// PolicyDrop leaves the gap absent; downstream marking falls back to
	// the last available close.
	PolicyDrop MissingDataPolicy = "drop"
	// PolicyFFill synthesizes a flat zero-volume bar at the prior close.
	PolicyFFill MissingDataPolicy = "ffill"
	// PolicyFlag rejects the dataset on the first gap.
	PolicyFlag MissingDataPolicy = "flag"
)

// Dataset is the aligned output of ingestion: every daily structure the
// engine touches is keyed by this universe and calendar.
type Dataset struct {
	Universe *domain.Universe
	Calendar *calendar.Calendar
	History  *domain.History
	Bars     []domain.Bar
}

// BuildDataset assigns dense asset IDs, derives the calendar from the union
// of bar dates, applies the missing-data policy and builds the history.
func BuildDataset(rows []SymbolBar, policy MissingDataPolicy, log zerolog.Logger) (*Dataset, error) {
	switch policy {
	case PolicyDrop, PolicyFFill, PolicyFlag:
	default:
		return nil, &domain.ConfigError{Option: "missing_data_policy", Reason: fmt.Sprintf("unknown policy %q", policy)}
	}
	if len(rows) == 0 {
		return nil, &domain.ConfigError{Option: "bars", Reason: "no input rows"}
	}

	universe := domain.NewUniverse()
	bars := make([]domain.Bar, 0, len(rows))
	for _, r := range rows {
		b := r.Bar
		b.Asset = universe.Add(r.Symbol)
		bars = append(bars, b)
	}

	cal, err := calendarFromBars(bars)
	if err != nil {
		return nil, err
	}

	bars, filled, err := applyPolicy(bars, cal, policy, universe)
	if err != nil {
		return nil, err
	}

	hist, err := domain.BuildHistory(bars)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("assets", universe.Size()).
		Int("sessions", cal.Len()).
		Int("bars", len(bars)).
		Int("filled", filled).
		Str("policy", string(policy)).
		Msg("dataset built")

	return &Dataset{Universe: universe, Calendar: cal, History: hist, Bars: bars}, nil
}

func calendarFromBars(bars []domain.Bar) (*calendar.Calendar, error) {
	seen := make(map[domain.Date]struct{})
	for _, b := range bars {
		seen[b.Date] = struct{}{}
	}
	dates := make([]domain.Date, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return calendar.New(dates)
}

// applyPolicy scans each asset's span of sessions between its first and last
// bar. Gaps outside that span are listing windows, not missing data.
func applyPolicy(bars []domain.Bar, cal *calendar.Calendar, policy MissingDataPolicy, universe *domain.Universe) ([]domain.Bar, int, error) {
	byAsset := make(map[domain.AssetID]map[domain.Date]domain.Bar)
	for _, b := range bars {
		m, ok := byAsset[b.Asset]
		if !ok {
			m = make(map[domain.Date]domain.Bar)
			byAsset[b.Asset] = m
		}
		if _, dup := m[b.Date]; dup {
			return nil, 0, &domain.ConsistencyError{
				Op: "ingest.dataset", Date: b.Date, Asset: b.Asset,
				Reason: fmt.Sprintf("duplicate bar for %s", universe.Symbol(b.Asset)),
			}
		}
		m[b.Date] = b
	}

	assets := make([]domain.AssetID, 0, len(byAsset))
	for a := range byAsset {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	filled := 0
	out := bars
	for _, a := range assets {
		series := byAsset[a]
		first, last := span(series)
		var prev domain.Bar
		havePrev := false
		for _, d := range cal.Range(first, last) {
			b, ok := series[d]
			if ok {
				prev, havePrev = b, true
				continue
			}
			switch policy {
			case PolicyFlag:
				return nil, 0, &domain.ConsistencyError{
					Op: "ingest.dataset", Date: d, Asset: a,
					Reason: fmt.Sprintf("missing bar for %s", universe.Symbol(a)),
				}
			case PolicyFFill:
				if !havePrev {
					continue
				}
				f := domain.Bar{
					Asset: a, Date: d,
					Open: prev.Close, High: prev.Close, Low: prev.Close, Close: prev.Close,
				}
				out = append(out, f)
				prev = f
				filled++
			case PolicyDrop:
			}
		}
	}
	return out, filled, nil
}

func span(series map[domain.Date]domain.Bar) (first, last domain.Date) {
	started := false
	for d := range series {
		if !started {
			first, last = d, d
			started = true
			continue
		}
		if d < first {
			first = d
		}
		if d > last {
			last = d
		}
	}
	return first, last
}
