package scheduling

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsMondayMorning(t *testing.T) {
	calc := NewCalculator(Interval30)
	windows := []AvailabilityWindow{{Day: "monday", From: "09:00", To: "11:00"}}

	for _, monday := range []CalendarDate{"2025-06-02", "2025-06-09", "2026-01-05"} {
		assert.Equal(t, []TimeOfDay{"09:00", "09:30", "10:00", "10:30"}, calc.Slots(windows, monday), monday)
	}
}

func TestSlotsNoMatchingWeekday(t *testing.T) {
	calc := NewCalculator(Interval30)
	windows := []AvailabilityWindow{{Day: "monday", From: "09:00", To: "11:00"}}

	assert.Empty(t, calc.Slots(windows, "2025-06-03"))
	assert.NotNil(t, calc.Slots(nil, "2025-06-02"))
	assert.Empty(t, calc.Slots(nil, "2025-06-02"))
}

func TestSlotsOverlappingWindowsAreMerged(t *testing.T) {
	calc := NewCalculator(Interval30)
	windows := []AvailabilityWindow{
		{Day: "monday", From: "10:00", To: "12:00"},
		{Day: "monday", From: "09:00", To: "11:00"},
		{Day: "monday", From: "14:00", To: "15:00"},
		{Day: "tuesday", From: "08:00", To: "09:00"},
	}
	got := calc.Slots(windows, "2025-06-02")
	assert.Equal(t, []TimeOfDay{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "14:00", "14:30"}, got)
}

func TestSlotsFortyFiveMinuteInterval(t *testing.T) {
	calc := NewCalculator(Interval45)
	windows := []AvailabilityWindow{{Day: "friday", From: "09:00", To: "11:00"}}
	assert.Equal(t, []TimeOfDay{"09:00", "09:45", "10:30"}, calc.Slots(windows, "2025-06-06"))
}

func TestSlotsIgnoresMalformedWindows(t *testing.T) {
	calc := NewCalculator(Interval30)
	windows := []AvailabilityWindow{
		{Day: "monday", From: "9 AM", To: "10:00"},
		{Day: "monday", From: "12:00", To: "11:00"},
		{Day: "monday", From: "13:00", To: "13:30"},
	}
	assert.Equal(t, []TimeOfDay{"13:00"}, calc.Slots(windows, "2025-06-02"))
}

func TestSlotsProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		var windows []AvailabilityWindow
		for n := rng.Intn(6); n > 0; n-- {
			from := rng.Intn(24*60 - 1)
			to := from + 1 + rng.Intn(24*60-from-1)
			windows = append(windows, AvailabilityWindow{
				Day:  weekdays[rng.Intn(7)],
				From: timeOfDayFromMinutes(from),
				To:   timeOfDayFromMinutes(to),
			})
		}
		date := DateOf(base.AddDate(0, 0, rng.Intn(14)))
		interval := Interval30
		if rng.Intn(2) == 0 {
			interval = Interval45
		}
		calc := NewCalculator(interval)
		day, err := date.Weekday()
		require.NoError(t, err)

		slots := calc.Slots(windows, date)
		assert.Equal(t, slots, calc.Slots(windows, date), "deterministic")

		prev := -1
		for _, s := range slots {
			m, ok := s.Minutes()
			require.True(t, ok)
			require.Greater(t, m, prev, fmt.Sprintf("case %d not strictly increasing: %v", i, slots))
			prev = m
			assert.True(t, inSomeWindow(windows, day, m), "slot %s outside windows", s)
		}

		matching := false
		for _, w := range windows {
			matching = matching || w.Day == day
		}
		if !matching {
			assert.Empty(t, slots)
		}
	}
}

func inSomeWindow(windows []AvailabilityWindow, day Weekday, m int) bool {
	for _, w := range windows {
		from, _ := w.From.Minutes()
		to, _ := w.To.Minutes()
		if w.Day == day && m >= from && m < to {
			return true
		}
	}
	return false
}

func TestFree(t *testing.T) {
	got := Free([]TimeOfDay{"09:00", "09:30", "10:00"}, []TimeOfDay{"09:30", "17:00"})
	assert.Equal(t, []TimeOfDay{"09:00", "10:00"}, got)
}

func TestParseWeekday(t *testing.T) {
	d, ok := ParseWeekday("  TUE ")
	assert.True(t, ok)
	assert.Equal(t, Weekday("tuesday"), d)

	_, ok = ParseWeekday("mo")
	assert.False(t, ok)
	_, ok = ParseWeekday("funday")
	assert.False(t, ok)
}
