// Package matcher finds a worker for a requested job window.
//
// Candidates are filtered, not ranked: any active worker qualified for the
// category whose calendar holds the whole window is acceptable. Ties are
// broken by worker id so the same inputs always pick the same worker.
package matcher

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
	"dispatch-service/internal/store"
)

// WorkerLister is the read side of the repository the matcher needs.
type WorkerLister interface {
	ListWorkers(ctx context.Context, f store.WorkerFilter) ([]domain.Worker, error)
}

// Request describes the job being matched.
type Request struct {
	CategoryID int64
	Start      time.Time
	End        time.Time
	// ExcludeWorkerID is skipped even when eligible.
	ExcludeWorkerID string
}

// Slot is a request resolved to the calendar day and time of day it occupies.
// Date is in the location the request was resolved in.
type Slot struct {
	Date   time.Time
	Day    calendar.Day
	Window calendar.Interval
}

// Resolve reads start and end in loc and checks they form a same-day window.
func Resolve(start, end time.Time, loc *time.Location) (Slot, error) {
	start = start.In(loc)
	day, window, err := calendar.WindowOf(start, end)
	if err != nil {
		return Slot{}, domain.Validation(domain.CodeInvalidWindow, err.Error())
	}
	return Slot{Date: start, Day: day, Window: window}, nil
}

type Matcher struct {
	workers WorkerLister
	loc     *time.Location
}

// New returns a Matcher reading job times in loc.
func New(workers WorkerLister, loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Matcher{workers: workers, loc: loc}
}

// Find returns one eligible worker. found is false when nobody qualifies;
// that is an outcome, not an error.
func (m *Matcher) Find(ctx context.Context, req Request) (w domain.Worker, found bool, err error) {
	slot, err := Resolve(req.Start, req.End, m.loc)
	if err != nil {
		return domain.Worker{}, false, err
	}

	candidates, err := m.workers.ListWorkers(ctx, store.WorkerFilter{ActiveOnly: true, CategoryID: req.CategoryID})
	if err != nil {
		return domain.Worker{}, false, fmt.Errorf("list candidate workers: %w", err)
	}
	slices.SortFunc(candidates, func(a, b domain.Worker) int { return strings.Compare(a.ID, b.ID) })

	for _, c := range candidates {
		if Eligible(c, req.CategoryID, slot, req.ExcludeWorkerID) {
			return c, true, nil
		}
	}
	return domain.Worker{}, false, nil
}

// Eligible is the matching predicate.
func Eligible(w domain.Worker, categoryID int64, slot Slot, excludeID string) bool {
	return w.Active &&
		w.Qualified(categoryID) &&
		w.ID != excludeID &&
		w.InHorizon(slot.Date, slot.Date.Location()) &&
		w.Calendar.IsFree(slot.Day, slot.Window)
}
