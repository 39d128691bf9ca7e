package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TemplateSlots is the fixed number of window slots per weekday.
const TemplateSlots = 2

var (
	// ErrInvalidTemplate is returned for a malformed weekly template.
	ErrInvalidTemplate = errors.New("invalid weekly template")
	// ErrInvalidHorizon is returned when a horizon would repeat a day of the month.
	ErrInvalidHorizon = errors.New("invalid horizon")
)

// DayTemplate is the free windows of one weekday. A nil slot means no window.
type DayTemplate [TemplateSlots]*Interval

// WeeklyTemplate indexes weekdays from 0 (Monday) to 6 (Sunday).
type WeeklyTemplate [7]DayTemplate

// WeekdayIndex maps a time.Weekday to the template index.
func WeekdayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// Validate checks that every window is well formed and that the windows of a
// weekday do not overlap.
func (t WeeklyTemplate) Validate() error {
	for wd, day := range t {
		var seen []Interval
		for _, slot := range day {
			if slot == nil {
				continue
			}
			if !slot.Valid() {
				return fmt.Errorf("%w: weekday %d window %s", ErrInvalidTemplate, wd, slot)
			}
			for _, other := range seen {
				if other.Overlaps(*slot) {
					return fmt.Errorf("%w: weekday %d windows %s and %s overlap", ErrInvalidTemplate, wd, other, slot)
				}
			}
			seen = append(seen, *slot)
		}
	}
	return nil
}

func (t WeeklyTemplate) windows(wd time.Weekday) []Interval {
	var out []Interval
	for _, slot := range t[WeekdayIndex(wd)] {
		if slot != nil {
			out = append(out, *slot)
		}
	}
	return normalize(out, false)
}

// Commitment is a window that must stay out of the free time: a job, or busy
// time imported from another calendar.
type Commitment struct {
	Ref   string    `json:"ref"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Build lays the template over horizonDays consecutive days starting at the
// day of horizonStart.
func Build(t WeeklyTemplate, horizonStart time.Time, horizonDays int) (Calendar, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if horizonDays < 1 || horizonDays > 31 {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidHorizon, horizonDays)
	}
	first := startOfDay(horizonStart)
	cal := make(Calendar, horizonDays)
	for i := 0; i < horizonDays; i++ {
		date := first.AddDate(0, 0, i)
		day := Day(date.Day())
		if _, dup := cal[day]; dup {
			return nil, fmt.Errorf("%w: day %d appears twice", ErrInvalidHorizon, day)
		}
		ivs := t.windows(date.Weekday())
		if ivs == nil {
			ivs = []Interval{}
		}
		cal[day] = ivs
	}
	return cal, nil
}

// Rebuild regenerates the horizon from the template and subtracts every
// commitment starting inside it. It either returns a complete calendar or an
// error; nothing partial escapes.
func Rebuild(t WeeklyTemplate, horizonStart time.Time, horizonDays int, committed []Commitment) (Calendar, error) {
	cal, err := Build(t, horizonStart, horizonDays)
	if err != nil {
		return nil, err
	}
	from := startOfDay(horizonStart)
	to := from.AddDate(0, 0, horizonDays)
	for _, c := range committed {
		start := c.Start.In(from.Location())
		if start.Before(from) || !start.Before(to) {
			continue
		}
		day, window, err := WindowOf(start, c.End)
		if err != nil {
			return nil, fmt.Errorf("apply commitment %s: %w", c.Ref, err)
		}
		cal.Subtract(day, window)
	}
	return cal, nil
}

// MonthHorizon returns the first day of t's month and the number of days in it.
func MonthHorizon(t time.Time) (time.Time, int) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first, first.AddDate(0, 1, -1).Day()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type weekdayJSON struct {
	Weekday int         `json:"weekday"`
	Windows []*Interval `json:"windows"`
}

// MarshalJSON writes seven entries, each with exactly TemplateSlots windows,
// absent windows as null.
func (t WeeklyTemplate) MarshalJSON() ([]byte, error) {
	out := make([]weekdayJSON, 0, len(t))
	for wd, day := range t {
		windows := make([]*Interval, TemplateSlots)
		copy(windows, day[:])
		out = append(out, weekdayJSON{Weekday: wd, Windows: windows})
	}
	return json.Marshal(out)
}

// UnmarshalJSON requires one entry per weekday, each with exactly
// TemplateSlots windows.
func (t *WeeklyTemplate) UnmarshalJSON(data []byte) error {
	var in []weekdayJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if len(in) != len(t) {
		return fmt.Errorf("%w: need %d weekdays, got %d", ErrInvalidTemplate, len(t), len(in))
	}
	var out WeeklyTemplate
	seen := make(map[int]bool, len(in))
	for _, entry := range in {
		if entry.Weekday < 0 || entry.Weekday > 6 || seen[entry.Weekday] {
			return fmt.Errorf("%w: weekday %d missing, repeated or out of range", ErrInvalidTemplate, entry.Weekday)
		}
		seen[entry.Weekday] = true
		if len(entry.Windows) != TemplateSlots {
			return fmt.Errorf("%w: weekday %d needs %d windows", ErrInvalidTemplate, entry.Weekday, TemplateSlots)
		}
		copy(out[entry.Weekday][:], entry.Windows)
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*t = out
	return nil
}
