package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/clinic-api/internal/apperr"
)

func TestNormalizeTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want TimeOfDay
	}{
		{"9 PM", "21:00"},
		{"12 AM", "00:00"},
		{"12 PM", "12:00"},
		{"9 AM", "09:00"},
		{"9:30 PM", "21:30"},
		{"9:30pm", "21:30"},
		{"11:45 a.m.", "11:45"},
		{"9:00", "09:00"},
		{"09:00", "09:00"},
		{"23:59", "23:59"},
		{" 07:15 ", "07:15"},
		// passthrough
		{"noon", "noon"},
		{"25:00", "25:00"},
		{"13 PM", "13 PM"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTimeOfDay(tt.in))
		})
	}
}

func TestNormalizeTimeOfDayIsFixedPoint(t *testing.T) {
	inputs := []string{"9 PM", "12 AM", "9:30 PM", "9:00", "17:45", "noon", "7", "  3 pm"}
	for _, in := range inputs {
		once := NormalizeTimeOfDay(in)
		assert.Equal(t, once, NormalizeTimeOfDay(string(once)), "input %q", in)
	}
}

func TestParseTimeOfDayRejectsGarbage(t *testing.T) {
	_, err := ParseTimeOfDay("noon")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := ParseTimeOfDay("2 pm")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay("14:00"), got)
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want CalendarDate
	}{
		{"canonical", "2025-06-02", "2025-06-02"},
		{"rfc3339 utc", "2025-06-02T09:30:00Z", "2025-06-02"},
		{"rfc3339 offset crosses midnight", "2025-06-02T01:00:00+03:00", "2025-06-01"},
		{"millis", "2025-06-02T23:59:59.999Z", "2025-06-02"},
		{"us style", "06/02/2025", "2025-06-02"},
		{"long", "June 2, 2025", "2025-06-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDateInvalid(t *testing.T) {
	for _, in := range []string{"", "not a date", "2025-13-40", "NaN"} {
		_, err := NormalizeDate(in)
		require.Error(t, err, in)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}
}

func TestSpan(t *testing.T) {
	start, end, err := Span("2025-06-02", "09:30", 45)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC), end)

	_, _, err = Span("2025-06-02", "09:30", 0)
	assert.Error(t, err)
	_, _, err = Span("2025-06-02", "9 AM", 30)
	assert.Error(t, err)
}

func TestCalendarDateWeekday(t *testing.T) {
	d, err := CalendarDate("2025-06-02").Weekday()
	require.NoError(t, err)
	assert.Equal(t, Weekday("monday"), d)
}
