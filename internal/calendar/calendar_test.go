package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/domain"
)

func TestNew_RejectsUnorderedSessions(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyCalendar)

	_, err = New([]domain.Date{100, 100})
	assert.ErrorIs(t, err, ErrNotAscending)

	_, err = New([]domain.Date{200, 100})
	assert.ErrorIs(t, err, ErrNotAscending)
}

func TestWeekdays_SkipsWeekends(t *testing.T) {
	// 2024-01-01 is a Monday
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)

	cal, err := Weekdays(start, end)
	require.NoError(t, err)
	assert.Equal(t, 10, cal.Len())

	sat := domain.DateOf(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	assert.False(t, cal.Contains(sat))
}

func TestShift(t *testing.T) {
	cal, err := New([]domain.Date{100, 200, 300, 400})
	require.NoError(t, err)

	d, ok := cal.Shift(200, 2)
	require.True(t, ok)
	assert.Equal(t, domain.Date(400), d)

	d, ok = cal.Shift(200, -1)
	require.True(t, ok)
	assert.Equal(t, domain.Date(100), d)

	// Out of range
	_, ok = cal.Shift(300, 5)
	assert.False(t, ok)

	// Not a session
	_, ok = cal.Shift(150, 1)
	assert.False(t, ok)
}

func TestRange(t *testing.T) {
	cal, err := New([]domain.Date{100, 200, 300, 400})
	require.NoError(t, err)

	assert.Equal(t, []domain.Date{200, 300}, cal.Range(150, 350))
	assert.Empty(t, cal.Range(500, 600))
}
