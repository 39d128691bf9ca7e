package domain

import "time"

// InHorizon reports whether t falls in the month the worker's calendar was
// generated for, with both read in loc. Stores may hand HorizonStart back in
// any zone, so the month is never taken from its own location. A worker
// without a recorded horizon accepts any date.
func (w Worker) InHorizon(t time.Time, loc *time.Location) bool {
	if w.HorizonStart.IsZero() {
		return true
	}
	if loc == nil {
		loc = time.UTC
	}
	hs := w.HorizonStart.In(loc)
	t = t.In(loc)
	return t.Year() == hs.Year() && t.Month() == hs.Month()
}
