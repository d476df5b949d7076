package domain

import "sort"

// History owns one contiguous bar buffer per asset and hands out Windows as
// index-range views into it. Windows are never copies; they stay valid for
// the lifetime of the History, which is immutable after construction.
type History struct {
	series map[AssetID]*assetSeries
}

// assetSeries is the per-asset arena: dates and bars are parallel slices in
// ascending date order.
type assetSeries struct {
	dates []Date
	bars  []Bar
}

// Window is a read-only view over a contiguous run of bars for one asset
// ending at a given date.
type Window struct {
	bars []Bar
}

// Len returns the number of bars in the window.
func (w Window) Len() int { return len(w.bars) }

// At returns the i-th bar, oldest first.
func (w Window) At(i int) Bar { return w.bars[i] }

// First returns the oldest bar in the window.
func (w Window) First() Bar { return w.bars[0] }

// Last returns the newest bar in the window.
func (w Window) Last() Bar { return w.bars[len(w.bars)-1] }

// BuildHistory groups bars by asset and sorts each series by date.
// Returns a ConsistencyError if an asset has two bars on the same date.
func BuildHistory(bars []Bar) (*History, error) {
	h := &History{series: make(map[AssetID]*assetSeries)}
	for _, b := range bars {
		s, ok := h.series[b.Asset]
		if !ok {
			s = &assetSeries{}
			h.series[b.Asset] = s
		}
		s.bars = append(s.bars, b)
	}
	for asset, s := range h.series {
		sort.Slice(s.bars, func(i, j int) bool { return s.bars[i].Date < s.bars[j].Date })
		s.dates = make([]Date, len(s.bars))
		for i, b := range s.bars {
			if i > 0 && b.Date == s.bars[i-1].Date {
				return nil, &ConsistencyError{Op: "history.build", Date: b.Date, Asset: asset, Reason: "duplicate bar date"}
			}
			s.dates[i] = b.Date
		}
	}
	return h, nil
}

// Window returns the window of the given length ending at date for an asset.
// The second return value is false when the asset has no bar on that date or
// fewer than length bars up to it (insufficient lookback).
func (h *History) Window(asset AssetID, end Date, length int) (Window, bool) {
	s, ok := h.series[asset]
	if !ok || length <= 0 {
		return Window{}, false
	}
	idx := sort.Search(len(s.dates), func(i int) bool { return s.dates[i] >= end })
	if idx >= len(s.dates) || s.dates[idx] != end {
		return Window{}, false
	}
	start := idx - length + 1
	if start < 0 {
		return Window{}, false
	}
	return Window{bars: s.bars[start : idx+1]}, true
}

// Close returns the closing price for (asset, date). The second return value
// is false when no bar exists for that date.
func (h *History) Close(asset AssetID, date Date) (float64, bool) {
	b, ok := h.bar(asset, date)
	if !ok {
		return 0, false
	}
	return b.Close, true
}

// Open returns the opening price for (asset, date).
func (h *History) Open(asset AssetID, date Date) (float64, bool) {
	b, ok := h.bar(asset, date)
	if !ok {
		return 0, false
	}
	return b.Open, true
}

// CloseAsOf returns the most recent closing price at or before date.
// Used for marking positions when an asset has no bar on a session.
func (h *History) CloseAsOf(asset AssetID, date Date) (float64, bool) {
	s, ok := h.series[asset]
	if !ok || len(s.dates) == 0 {
		return 0, false
	}
	idx := sort.Search(len(s.dates), func(i int) bool { return s.dates[i] > date })
	if idx == 0 {
		return 0, false
	}
	return s.bars[idx-1].Close, true
}

// Assets returns all assets with at least one bar, in ascending ID order.
func (h *History) Assets() []AssetID {
	out := make([]AssetID, 0, len(h.series))
	for a := range h.series {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dates returns the union of all bar dates in ascending order.
func (h *History) Dates() []Date {
	seen := make(map[Date]struct{})
	for _, s := range h.series {
		for _, d := range s.dates {
			seen[d] = struct{}{}
		}
	}
	out := make([]Date, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *History) bar(asset AssetID, date Date) (Bar, bool) {
	s, ok := h.series[asset]
	if !ok {
		return Bar{}, false
	}
	idx := sort.Search(len(s.dates), func(i int) bool { return s.dates[i] >= date })
	if idx >= len(s.dates) || s.dates[idx] != date {
		return Bar{}, false
	}
	return s.bars[idx], true
}
