// Package calendar holds a worker's free time as per-day lists of disjoint intervals
// and the operations that carve jobs out of it or give time back.
package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinSlotMinutes is the smallest fragment kept after a subtraction.
const MinSlotMinutes = 60

const minutesPerDay = 24 * 60

var (
	// ErrInvalidTime is returned for a time of day that is not "HH:MM".
	ErrInvalidTime = errors.New("invalid time of day")
	// ErrInvalidWindow is returned for a window whose start is not before its end
	// or that does not lie within a single calendar day.
	ErrInvalidWindow = errors.New("invalid time window")
)

// TimeOfDay is minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses a 24h "HH:MM" string. Longer strings such as
// "09:00:00" are cut to their first five characters. "24:00" is the end of
// the day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) < 5 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if s[:5] == "24:00" && strings.Trim(s[5:], ":0") == "" {
		return minutesPerDay, nil
	}
	tt, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return TimeOfDay(tt.Hour()*60 + tt.Minute()), nil
}

// TimeOfDayOf returns the minute-granularity time of day of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Interval is a half-open [Start, End) span within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// NewInterval parses start and end "HH:MM" strings into a valid interval.
func NewInterval(start, end string) (Interval, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Interval{}, err
	}
	iv := Interval{Start: s, End: e}
	if !iv.Valid() {
		return Interval{}, fmt.Errorf("%w: %s", ErrInvalidWindow, iv)
	}
	return iv, nil
}

// ParseInterval parses the "HH:MM-HH:MM" form.
func ParseInterval(s string) (Interval, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	return NewInterval(strings.TrimSpace(start), strings.TrimSpace(end))
}

// MustInterval is ParseInterval for literals known to be valid.
func MustInterval(s string) Interval {
	iv, err := ParseInterval(s)
	if err != nil {
		panic(err)
	}
	return iv
}

// Valid reports whether the interval is non-empty and inside one day.
func (iv Interval) Valid() bool {
	return iv.Start >= 0 && iv.End <= minutesPerDay && iv.Start < iv.End
}

// Minutes is the length of the interval.
func (iv Interval) Minutes() int {
	return int(iv.End - iv.Start)
}

// Contains reports whether other lies entirely inside iv.
func (iv Interval) Contains(other Interval) bool {
	return iv.Start <= other.Start && other.End <= iv.End
}

// Overlaps reports whether the two intervals share any minute.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

func (iv Interval) String() string {
	return iv.Start.String() + "-" + iv.End.String()
}

func (iv Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal(iv.String())
}

func (iv *Interval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInterval(s)
	if err != nil {
		return err
	}
	*iv = parsed
	return nil
}

// WindowOf converts a job's start and end timestamps into the calendar day and
// time-of-day interval they occupy. Both are read in start's location. An end
// exactly at the following midnight is 24:00 of start's day.
func WindowOf(start, end time.Time) (Day, Interval, error) {
	end = end.In(start.Location())
	if !start.Before(end) {
		return 0, Interval{}, fmt.Errorf("%w: start %s not before end %s", ErrInvalidWindow, start, end)
	}
	sy, sm, sd := start.Date()
	endOfDay := TimeOfDayOf(end)
	if end.Equal(time.Date(sy, sm, sd+1, 0, 0, 0, 0, start.Location())) {
		endOfDay = minutesPerDay
	} else if ey, em, ed := end.Date(); sy != ey || sm != em || sd != ed {
		return 0, Interval{}, fmt.Errorf("%w: window crosses midnight", ErrInvalidWindow)
	}
	iv := Interval{Start: TimeOfDayOf(start), End: endOfDay}
	if !iv.Valid() {
		return 0, Interval{}, fmt.Errorf("%w: %s", ErrInvalidWindow, iv)
	}
	return Day(sd), iv, nil
}
