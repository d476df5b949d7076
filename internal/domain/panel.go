package domain

import "sort"

// Panel is a table keyed by (Date, AssetID). Dates are ordered and form the
// outer iteration axis; assets are unordered within a date. Within one Panel
// every (date, asset) pair maps to at most one value; absence means "no data",
// which is distinct from an explicit NaN.
//
// A Panel is produced by one component and treated as read-only by every
// downstream consumer. Set returns a ConsistencyError on duplicate keys
// rather than overwriting, since a duplicate indicates a logic defect in the
// producer.
type Panel[T any] struct {
	cells  map[Date]map[AssetID]T
	dates  []Date
	sorted bool
}

// NewPanel creates an empty Panel.
func NewPanel[T any]() *Panel[T] {
	return &Panel[T]{cells: make(map[Date]map[AssetID]T)}
}

// Set stores a value for (date, asset). Returns a ConsistencyError if the
// cell is already populated.
func (p *Panel[T]) Set(date Date, asset AssetID, value T) error {
	row, ok := p.cells[date]
	if !ok {
		row = make(map[AssetID]T)
		p.cells[date] = row
		p.dates = append(p.dates, date)
		p.sorted = false
	}
	if _, exists := row[asset]; exists {
		return &ConsistencyError{Op: "panel.set", Date: date, Asset: asset, Reason: "duplicate (date, asset) key"}
	}
	row[asset] = value
	return nil
}

// SetRow stores a full cross-section for one date. Returns a ConsistencyError
// if the date already has any values.
func (p *Panel[T]) SetRow(date Date, row map[AssetID]T) error {
	if _, exists := p.cells[date]; exists {
		return &ConsistencyError{Op: "panel.setrow", Date: date, Reason: "duplicate date"}
	}
	copied := make(map[AssetID]T, len(row))
	for a, v := range row {
		copied[a] = v
	}
	p.cells[date] = copied
	p.dates = append(p.dates, date)
	p.sorted = false
	return nil
}

// Get returns the value for (date, asset). The second return value is false
// when the cell is absent.
func (p *Panel[T]) Get(date Date, asset AssetID) (T, bool) {
	row, ok := p.cells[date]
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := row[asset]
	return v, ok
}

// Dates returns all dates in ascending order.
func (p *Panel[T]) Dates() []Date {
	p.ensureSorted()
	out := make([]Date, len(p.dates))
	copy(out, p.dates)
	return out
}

// Row returns a copy of the cross-section for one date. The copy keeps
// callers from mutating panel state they do not own.
func (p *Panel[T]) Row(date Date) map[AssetID]T {
	row, ok := p.cells[date]
	if !ok {
		return nil
	}
	out := make(map[AssetID]T, len(row))
	for a, v := range row {
		out[a] = v
	}
	return out
}

// Assets returns the assets present on a date in ascending ID order.
func (p *Panel[T]) Assets(date Date) []AssetID {
	row, ok := p.cells[date]
	if !ok {
		return nil
	}
	out := make([]AssetID, 0, len(row))
	for a := range row {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of populated cells across all dates.
func (p *Panel[T]) Len() int {
	n := 0
	for _, row := range p.cells {
		n += len(row)
	}
	return n
}

// NumDates returns the number of dates with at least one value.
func (p *Panel[T]) NumDates() int {
	return len(p.dates)
}

func (p *Panel[T]) ensureSorted() {
	if p.sorted {
		return
	}
	sort.Slice(p.dates, func(i, j int) bool { return p.dates[i] < p.dates[j] })
	p.sorted = true
}
