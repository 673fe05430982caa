// Package scheduling holds the pure parts of appointment scheduling: date and
// time-of-day normalization, availability ingestion and slot generation.
package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harentsoaR/clinic-api/internal/apperr"
)

// CalendarDate is a UTC calendar day formatted as YYYY-MM-DD.
type CalendarDate string

// TimeOfDay is a 24-hour clock time formatted as HH:mm.
type TimeOfDay string

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Accepted date inputs, tried in order. Inputs carrying an offset are moved to
// UTC before the calendar day is taken.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon Jan 02 2006",
	"Mon, 02 Jan 2006 15:04:05 MST",
}

var (
	canonicalTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
	looseTimeRe     = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(?:([AaPp])\.?\s*[Mm]\.?)?$`)
)

// NormalizeDate parses a user supplied date string into its canonical form.
func NormalizeDate(input string) (CalendarDate, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", apperr.Validation("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return "", apperr.Validation("invalid date %q", input)
}

// DateOf returns the UTC calendar day of t.
func DateOf(t time.Time) CalendarDate {
	return CalendarDate(t.UTC().Format(DateLayout))
}

// Time returns UTC midnight of d.
func (d CalendarDate) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q", string(d))
	}
	return t, nil
}

// Weekday returns the lowercase English weekday name of d.
func (d CalendarDate) Weekday() (Weekday, error) {
	t, err := d.Time()
	if err != nil {
		return "", err
	}
	return weekdayOf(t.Weekday()), nil
}

// NormalizeTimeOfDay converts "HH:mm" or a 12-hour string ("9 AM", "9:30 PM",
// "9:00") into HH:mm. Input matching neither shape, or naming an impossible
// clock time, is returned unchanged; use ParseTimeOfDay where garbage must be
// rejected.
func NormalizeTimeOfDay(input string) TimeOfDay {
	s := strings.TrimSpace(input)
	if canonicalTimeRe.MatchString(s) {
		return TimeOfDay(s)
	}
	m := looseTimeRe.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay(input)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := strings.ToUpper(m[3])
	if meridiem != "" && (hour < 1 || hour > 12) {
		return TimeOfDay(input)
	}
	switch meridiem {
	case "A":
		if hour == 12 {
			hour = 0
		}
	case "P":
		if hour != 12 {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return TimeOfDay(input)
	}
	return TimeOfDay(fmt.Sprintf("%02d:%02d", hour, minute))
}

// ParseTimeOfDay normalizes input and fails if the result is not canonical.
func ParseTimeOfDay(input string) (TimeOfDay, error) {
	t := NormalizeTimeOfDay(input)
	if !t.Valid() {
		return "", apperr.Validation("invalid time %q", input)
	}
	return t, nil
}

func (t TimeOfDay) Valid() bool {
	return canonicalTimeRe.MatchString(string(t))
}

// Minutes returns minutes after midnight. ok is false for non-canonical values.
func (t TimeOfDay) Minutes() (int, bool) {
	m := canonicalTimeRe.FindStringSubmatch(string(t))
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return h*60 + mm, true
}

func timeOfDayFromMinutes(m int) TimeOfDay {
	return TimeOfDay(fmt.Sprintf("%02d:%02d", m/60, m%60))
}

// ToInstant is UTC midnight of date plus the time-of-day offset.
func ToInstant(date CalendarDate, tod TimeOfDay) (time.Time, error) {
	day, err := date.Time()
	if err != nil {
		return time.Time{}, err
	}
	mins, ok := tod.Minutes()
	if !ok {
		return time.Time{}, apperr.Validation("invalid time %q", string(tod))
	}
	return day.Add(time.Duration(mins) * time.Minute), nil
}

// Span returns the start and end instants of an appointment.
func Span(date CalendarDate, tod TimeOfDay, durationMinutes int) (time.Time, time.Time, error) {
	if durationMinutes <= 0 {
		return time.Time{}, time.Time{}, apperr.Validation("duration must be positive")
	}
	start, err := ToInstant(date, tod)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(time.Duration(durationMinutes) * time.Minute), nil
}
