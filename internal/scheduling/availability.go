package scheduling

import (
	"sort"
	"strings"
	"time"
)

// Weekday is a lowercase English weekday name ("monday" ... "sunday").
type Weekday string

var weekdays = [...]Weekday{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func weekdayOf(d time.Weekday) Weekday { return weekdays[d] }

// ParseWeekday accepts full or three-letter names in any case.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return "", false
	}
	for _, d := range weekdays {
		if string(d) == s || string(d)[:3] == s {
			return d, true
		}
	}
	return "", false
}

// AvailabilityWindow is a recurring weekly interval in canonical form.
type AvailabilityWindow struct {
	Day  Weekday   `bson:"day" json:"day"`
	From TimeOfDay `bson:"from" json:"from"`
	To   TimeOfDay `bson:"to" json:"to"`
}

// Intervals accepted for slot generation.
const (
	Interval30 = 30 * time.Minute
	Interval45 = 45 * time.Minute
)

// Calculator enumerates bookable slot start times from weekly windows.
type Calculator struct {
	Interval time.Duration
}

func NewCalculator(interval time.Duration) Calculator {
	if interval <= 0 {
		interval = Interval30
	}
	return Calculator{Interval: interval}
}

// Slots returns, in chronological order and without duplicates, every slot
// start in the windows matching date's weekday. A window yields starts from
// From (inclusive) stepping by the interval while the start is before To.
// Windows with non-canonical bounds are ignored. An empty result means no
// bookable slots.
func (c Calculator) Slots(windows []AvailabilityWindow, date CalendarDate) []TimeOfDay {
	day, err := date.Weekday()
	if err != nil || len(windows) == 0 {
		return []TimeOfDay{}
	}
	step := int(c.Interval / time.Minute)
	if step <= 0 {
		step = int(Interval30 / time.Minute)
	}

	seen := make(map[int]struct{})
	for _, w := range windows {
		if w.Day != day {
			continue
		}
		from, ok1 := w.From.Minutes()
		to, ok2 := w.To.Minutes()
		if !ok1 || !ok2 {
			continue
		}
		for m := from; m < to; m += step {
			seen[m] = struct{}{}
		}
	}

	mins := make([]int, 0, len(seen))
	for m := range seen {
		mins = append(mins, m)
	}
	sort.Ints(mins)

	slots := make([]TimeOfDay, len(mins))
	for i, m := range mins {
		slots[i] = timeOfDayFromMinutes(m)
	}
	return slots
}

// Contains reports whether slot is produced by Slots for the same input.
func (c Calculator) Contains(windows []AvailabilityWindow, date CalendarDate, slot TimeOfDay) bool {
	for _, s := range c.Slots(windows, date) {
		if s == slot {
			return true
		}
	}
	return false
}

// Free removes booked slots from candidates, keeping order.
func Free(candidates, booked []TimeOfDay) []TimeOfDay {
	taken := make(map[TimeOfDay]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}
	out := make([]TimeOfDay, 0, len(candidates))
	for _, s := range candidates {
		if _, ok := taken[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
