package calendar

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Day is a day of the month, 1..31.
type Day int

// Valid reports whether d is a possible day of the month.
func (d Day) Valid() bool {
	return d >= 1 && d <= 31
}

// Calendar maps each day of the horizon to its free intervals, ascending and
// non-overlapping. A day present with no intervals has no free time; a day
// absent from the map is outside the horizon.
type Calendar map[Day][]Interval

// Clone returns a deep copy.
func (c Calendar) Clone() Calendar {
	out := make(Calendar, len(c))
	for d, ivs := range c {
		out[d] = append([]Interval(nil), ivs...)
	}
	return out
}

// Days returns the days of the horizon in ascending order.
func (c Calendar) Days() []Day {
	days := make([]Day, 0, len(c))
	for d := range c {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// Intervals returns a copy of the free intervals of day.
func (c Calendar) Intervals(day Day) []Interval {
	return append([]Interval(nil), c[day]...)
}

// IsFree reports whether the free time of day fully contains window.
// Intervals stored back to back count as one run, so a calendar answers the
// same whether or not adjacent intervals were merged.
func (c Calendar) IsFree(day Day, window Interval) bool {
	if !window.Valid() {
		return false
	}
	ivs := c[day]
	for i := 0; i < len(ivs); i++ {
		run := ivs[i]
		for i+1 < len(ivs) && ivs[i+1].Start <= run.End {
			i++
			if ivs[i].End > run.End {
				run.End = ivs[i].End
			}
		}
		if run.Contains(window) {
			return true
		}
	}
	return false
}

// Subtract removes window from the free intervals of day. An interval equal to
// or covered by the window disappears, one touching an edge shrinks, one
// strictly containing it splits in two. Partial overlaps lose only the
// overlapping part. Fragments shorter than MinSlotMinutes are dropped.
//
// It reports whether any interval was touched; false means the calendar had
// nothing to remove for that day and is left as it was.
func (c Calendar) Subtract(day Day, window Interval) bool {
	if !window.Valid() {
		return false
	}
	ivs, ok := c[day]
	if !ok {
		return false
	}

	touched := false
	out := make([]Interval, 0, len(ivs)+1)
	for _, iv := range ivs {
		if !iv.Overlaps(window) {
			out = append(out, iv)
			continue
		}
		touched = true
		if window.Start > iv.Start {
			out = appendFragment(out, Interval{Start: iv.Start, End: window.Start})
		}
		if window.End < iv.End {
			out = appendFragment(out, Interval{Start: window.End, End: iv.End})
		}
	}
	if touched {
		c[day] = out
	}
	return touched
}

func appendFragment(out []Interval, frag Interval) []Interval {
	if frag.Minutes() < MinSlotMinutes {
		return out
	}
	return append(out, frag)
}

// Restore gives window back to day, merging it with any interval it overlaps
// or touches. It reports false when day is outside the horizon.
func (c Calendar) Restore(day Day, window Interval) bool {
	if !window.Valid() {
		return false
	}
	ivs, ok := c[day]
	if !ok {
		return false
	}
	c[day] = normalize(append(append([]Interval(nil), ivs...), window), true)
	return true
}

// normalize sorts intervals and merges overlapping ones, and adjacent ones
// too when mergeAdjacent is set.
func normalize(ivs []Interval, mergeAdjacent bool) []Interval {
	if len(ivs) == 0 {
		return ivs
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start < ivs[j].Start })
	merged := []Interval{ivs[0]}
	for _, iv := range ivs[1:] {
		last := &merged[len(merged)-1]
		if iv.Start < last.End || (mergeAdjacent && iv.Start == last.End) {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

type dayJSON struct {
	Day       Day        `json:"day"`
	Intervals []Interval `json:"intervals"`
}

// MarshalJSON writes the calendar as a day-ordered array.
func (c Calendar) MarshalJSON() ([]byte, error) {
	out := make([]dayJSON, 0, len(c))
	for _, d := range c.Days() {
		ivs := c[d]
		if ivs == nil {
			ivs = []Interval{}
		}
		out = append(out, dayJSON{Day: d, Intervals: ivs})
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the day-ordered array form and re-establishes the
// ordering invariant.
func (c *Calendar) UnmarshalJSON(data []byte) error {
	var in []dayJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Calendar, len(in))
	for _, d := range in {
		if !d.Day.Valid() {
			return fmt.Errorf("calendar day %d out of range", d.Day)
		}
		if _, dup := out[d.Day]; dup {
			return fmt.Errorf("calendar day %d repeated", d.Day)
		}
		out[d.Day] = normalize(append([]Interval{}, d.Intervals...), false)
	}
	*c = out
	return nil
}
