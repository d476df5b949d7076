// Package domain holds the core data model shared by every engine component:
// time/asset indexed containers, factor definitions, portfolio options and
// accounting records. Types here are plain values with no behaviour beyond
// lookups; components own their mutation rules.
package domain

import (
	"sort"
	"time"
)

// Date is a calendar-aligned session timestamp, expressed as Unix milliseconds
// in UTC. Only dates present in the run's trading calendar are legal keys for
// daily data.
type Date int64

// Time converts a Date to time.Time in UTC.
func (d Date) Time() time.Time {
	return time.UnixMilli(int64(d)).UTC()
}

// DateOf truncates t to UTC midnight and returns it as a Date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date(time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).UnixMilli())
}

// AssetID is a dense integer handle identifying one tradable instrument for
// the lifetime of a run. IDs are assigned once by the Universe and are stable
// across the whole dataset, so they can index array-backed tables directly.
type AssetID int32

// Bar is one adjusted OHLCV observation for an (AssetID, Date) pair.
// Bars are immutable once ingested.
type Bar struct {
	Asset  AssetID
	Date   Date
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Universe maps external instrument symbols to dense AssetIDs. Symbols are
// registered once during ingestion; the mapping never changes mid-run.
type Universe struct {
	symbols []string
	ids     map[string]AssetID
}

// NewUniverse creates an empty Universe.
func NewUniverse() *Universe {
	return &Universe{ids: make(map[string]AssetID)}
}

// Add registers a symbol and returns its AssetID. Registering an existing
// symbol returns the previously assigned ID.
func (u *Universe) Add(symbol string) AssetID {
	if id, ok := u.ids[symbol]; ok {
		return id
	}
	id := AssetID(len(u.symbols))
	u.symbols = append(u.symbols, symbol)
	u.ids[symbol] = id
	return id
}

// Lookup returns the AssetID for a symbol. The second return value indicates
// whether the symbol is registered.
func (u *Universe) Lookup(symbol string) (AssetID, bool) {
	id, ok := u.ids[symbol]
	return id, ok
}

// Symbol returns the symbol for an AssetID, or "" if the ID is unknown.
func (u *Universe) Symbol(id AssetID) string {
	if int(id) < 0 || int(id) >= len(u.symbols) {
		return ""
	}
	return u.symbols[id]
}

// Size returns the number of registered assets.
func (u *Universe) Size() int {
	return len(u.symbols)
}

// Assets returns all registered AssetIDs in ascending order.
func (u *Universe) Assets() []AssetID {
	out := make([]AssetID, len(u.symbols))
	for i := range u.symbols {
		out[i] = AssetID(i)
	}
	return out
}

// SortedDates returns a sorted copy of the given dates.
func SortedDates(dates []Date) []Date {
	out := make([]Date, len(dates))
	copy(out, dates)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
