package scheduling

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/harentsoaR/clinic-api/internal/apperr"
)

// AvailabilityInput accepts the shapes clients send for a doctor's weekly
// availability and normalizes them into canonical windows:
//
//	"monday 09:00-12:00, tue 2 PM-5 PM"
//	[{"day": "monday", "from": "09:00", "to": "12:00"}]
//	{"monday": [{"from": "09:00", "to": "12:00"}], "friday": "1 PM-4 PM"}
type AvailabilityInput struct {
	Windows []AvailabilityWindow
}

type rawWindow struct {
	Day   string `json:"day"`
	From  string `json:"from"`
	To    string `json:"to"`
	Start string `json:"start"`
	End   string `json:"end"`
}

var (
	entrySep = regexp.MustCompile(`[,;\n]+`)
	rangeSep = regexp.MustCompile(`\s*(?:-|–|\bto\b)\s*`)
)

func (a *AvailabilityInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.Windows = nil
		return nil
	}

	var (
		windows []AvailabilityWindow
		err     error
	)
	switch data[0] {
	case '"':
		var s string
		if err = json.Unmarshal(data, &s); err != nil {
			return apperr.Validation("availability: %v", err)
		}
		windows, err = ParseAvailabilityString(s)
	case '[':
		var raws []rawWindow
		if err = json.Unmarshal(data, &raws); err != nil {
			return apperr.Validation("availability: %v", err)
		}
		windows, err = fromRaw(raws, "")
	case '{':
		var byDay map[string]json.RawMessage
		if err = json.Unmarshal(data, &byDay); err != nil {
			return apperr.Validation("availability: %v", err)
		}
		windows, err = fromDayKeyed(byDay)
	default:
		return apperr.Validation("availability: unsupported shape")
	}
	if err != nil {
		return err
	}
	sortWindows(windows)
	a.Windows = windows
	return nil
}

func (a AvailabilityInput) MarshalJSON() ([]byte, error) {
	if a.Windows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Windows)
}

// ParseAvailabilityString reads "day from-to" entries separated by commas,
// semicolons or newlines.
func ParseAvailabilityString(s string) ([]AvailabilityWindow, error) {
	var out []AvailabilityWindow
	for _, entry := range entrySep.Split(s, -1) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dayPart, rangePart, ok := strings.Cut(entry, " ")
		if !ok {
			return nil, apperr.Validation("availability: %q has no time range", entry)
		}
		w, err := parseRange(dayPart, rangePart)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func parseRange(day, r string) (AvailabilityWindow, error) {
	parts := rangeSep.Split(strings.TrimSpace(r), 2)
	if len(parts) != 2 {
		return AvailabilityWindow{}, apperr.Validation("availability: invalid range %q", r)
	}
	return newWindow(day, parts[0], parts[1])
}

func newWindow(day, from, to string) (AvailabilityWindow, error) {
	d, ok := ParseWeekday(day)
	if !ok {
		return AvailabilityWindow{}, apperr.Validation("availability: unknown day %q", day)
	}
	f, err := ParseTimeOfDay(from)
	if err != nil {
		return AvailabilityWindow{}, err
	}
	t, err := ParseTimeOfDay(to)
	if err != nil {
		return AvailabilityWindow{}, err
	}
	fm, _ := f.Minutes()
	tm, _ := t.Minutes()
	if fm >= tm {
		return AvailabilityWindow{}, apperr.Validation("availability: %s window %s-%s ends before it starts", d, f, t)
	}
	return AvailabilityWindow{Day: d, From: f, To: t}, nil
}

func fromRaw(raws []rawWindow, day string) ([]AvailabilityWindow, error) {
	out := make([]AvailabilityWindow, 0, len(raws))
	for _, r := range raws {
		d := r.Day
		switch {
		case d == "":
			d = day
		case day != "" && !sameWeekday(d, day):
			return nil, apperr.Validation("availability: window for %q is listed under %q", d, day)
		}
		from, to := r.From, r.To
		if from == "" {
			from = r.Start
		}
		if to == "" {
			to = r.End
		}
		w, err := newWindow(d, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func sameWeekday(a, b string) bool {
	wa, okA := ParseWeekday(a)
	wb, okB := ParseWeekday(b)
	return okA && okB && wa == wb
}

func fromDayKeyed(byDay map[string]json.RawMessage) ([]AvailabilityWindow, error) {
	var out []AvailabilityWindow
	for day, raw := range byDay {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var ws []AvailabilityWindow
		var err error
		switch raw[0] {
		case '"':
			var s string
			if err = json.Unmarshal(raw, &s); err != nil {
				return nil, apperr.Validation("availability: %v", err)
			}
			for _, r := range entrySep.Split(s, -1) {
				if strings.TrimSpace(r) == "" {
					continue
				}
				w, err := parseRange(day, r)
				if err != nil {
					return nil, err
				}
				ws = append(ws, w)
			}
		case '[':
			var raws []rawWindow
			if err = json.Unmarshal(raw, &raws); err != nil {
				return nil, apperr.Validation("availability: %v", err)
			}
			ws, err = fromRaw(raws, day)
		case '{':
			var r rawWindow
			if err = json.Unmarshal(raw, &r); err != nil {
				return nil, apperr.Validation("availability: %v", err)
			}
			ws, err = fromRaw([]rawWindow{r}, day)
		default:
			err = apperr.Validation("availability: unsupported value for %q", day)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ws...)
	}
	return out, nil
}

func dayIndex(d Weekday) int {
	for i, w := range weekdays {
		if w == d {
			// monday first
			return (i + 6) % 7
		}
	}
	return len(weekdays)
}

func sortWindows(ws []AvailabilityWindow) {
	sort.SliceStable(ws, func(i, j int) bool {
		di, dj := dayIndex(ws[i].Day), dayIndex(ws[j].Day)
		if di != dj {
			return di < dj
		}
		return ws[i].From < ws[j].From
	})
}
