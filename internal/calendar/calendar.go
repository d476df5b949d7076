// Package calendar provides the trading calendar the engine aligns every
// daily structure to. The calendar itself is declared by the ingestion
// collaborator; the engine only needs ordered sessions and index arithmetic.
package calendar

import (
	"errors"
	"time"

	"factorlab/internal/domain"
)

// Calendar errors.
var (
	ErrEmptyCalendar = errors.New("calendar has no sessions")
	ErrNotAscending  = errors.New("calendar sessions must be strictly ascending")
)

// Calendar is an immutable ordered list of trading sessions.
type Calendar struct {
	sessions []domain.Date
	index    map[domain.Date]int
}

// New creates a Calendar from strictly ascending session dates.
func New(sessions []domain.Date) (*Calendar, error) {
	if len(sessions) == 0 {
		return nil, ErrEmptyCalendar
	}
	index := make(map[domain.Date]int, len(sessions))
	for i, d := range sessions {
		if i > 0 && d <= sessions[i-1] {
			return nil, ErrNotAscending
		}
		index[d] = i
	}
	copied := make([]domain.Date, len(sessions))
	copy(copied, sessions)
	return &Calendar{sessions: copied, index: index}, nil
}

// Weekdays builds a Monday-Friday calendar covering [start, end]. It ignores
// exchange holidays and exists for synthetic datasets and tests; production
// calendars come from the ingestion collaborator.
func Weekdays(start, end time.Time) (*Calendar, error) {
	var sessions []domain.Date
	for t := start.UTC(); !t.After(end.UTC()); t = t.AddDate(0, 0, 1) {
		switch t.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		sessions = append(sessions, domain.DateOf(t))
	}
	return New(sessions)
}

// Sessions returns all sessions in ascending order.
func (c *Calendar) Sessions() []domain.Date {
	out := make([]domain.Date, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// Len returns the number of sessions.
func (c *Calendar) Len() int { return len(c.sessions) }

// Contains reports whether d is a trading session.
func (c *Calendar) Contains(d domain.Date) bool {
	_, ok := c.index[d]
	return ok
}

// Index returns the ordinal of a session. The second return value is false
// when d is not a session.
func (c *Calendar) Index(d domain.Date) (int, bool) {
	i, ok := c.index[d]
	return i, ok
}

// Shift returns the session n steps after d (negative n steps back). The
// second return value is false when d is not a session or the shifted
// ordinal falls outside the calendar.
func (c *Calendar) Shift(d domain.Date, n int) (domain.Date, bool) {
	i, ok := c.index[d]
	if !ok {
		return 0, false
	}
	j := i + n
	if j < 0 || j >= len(c.sessions) {
		return 0, false
	}
	return c.sessions[j], true
}

// Range returns all sessions within [from, to] inclusive.
func (c *Calendar) Range(from, to domain.Date) []domain.Date {
	var out []domain.Date
	for _, d := range c.sessions {
		if d < from {
			continue
		}
		if d > to {
			break
		}
		out = append(out, d)
	}
	return out
}
