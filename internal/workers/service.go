// Package workers manages worker schedules: the weekly template, the month
// calendar generated from it, the active flag and busy time imported from an
// external calendar.
package workers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
	"dispatch-service/internal/keylock"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/matcher"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/store"
)

// BusySource lists windows a worker is busy elsewhere.
type BusySource interface {
	Busy(ctx context.Context, from, to time.Time) ([]calendar.Commitment, error)
}

type Deps struct {
	Repo     store.Repository
	Locks    *keylock.Locker
	Metrics  *metrics.Metrics
	Logger   logger.Logger
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo    store.Repository
	locks   *keylock.Locker
	metrics *metrics.Metrics
	log     logger.Logger
	loc     *time.Location
	now     func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{repo: d.Repo, locks: d.Locks, metrics: d.Metrics, log: d.Logger, loc: d.Location, now: d.Now}
	if s.locks == nil {
		s.locks = keylock.New()
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Booking is a job holding part of a worker's time.
type Booking struct {
	JobID  string            `json:"job_id"`
	Status domain.Status     `json:"status"`
	Day    calendar.Day      `json:"day"`
	Window calendar.Interval `json:"window"`
}

// Schedule is what a worker sees of their own time.
type Schedule struct {
	WorkerID     string                  `json:"worker_id"`
	Active       bool                    `json:"active"`
	Template     calendar.WeeklyTemplate `json:"weekly_template"`
	Calendar     calendar.Calendar       `json:"calendar"`
	HorizonStart time.Time               `json:"horizon_start"`
	Bookings     []Booking               `json:"bookings"`
}

// GetSchedule returns the worker's template, calendar and the accepted or
// running jobs of the current horizon.
func (s *Service) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	w, err := s.get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	first, days := calendar.MonthHorizon(s.horizonRef(w))
	jobs, err := s.repo.ListJobs(ctx, store.JobFilter{
		WorkerID:  id,
		Statuses:  []domain.Status{domain.StatusAccepted, domain.StatusInProgress},
		StartFrom: first,
		StartTo:   first.AddDate(0, 0, days),
	})
	if err != nil {
		return Schedule{}, fmt.Errorf("list jobs of worker %s: %w", id, err)
	}

	sched := Schedule{
		WorkerID:     w.ID,
		Active:       w.Active,
		Template:     w.Template,
		Calendar:     w.Calendar,
		HorizonStart: w.HorizonStart,
		Bookings:     []Booking{},
	}
	for _, j := range jobs {
		slot, err := matcher.Resolve(j.StartTime, j.EndTime, s.loc)
		if err != nil {
			continue
		}
		sched.Bookings = append(sched.Bookings, Booking{JobID: j.ID, Status: j.Status, Day: slot.Day, Window: slot.Window})
	}
	return sched, nil
}

// UpdateSchedule stores a new weekly template and regenerates the current
// month from it. Template and calendar are written together or not at all.
func (s *Service) UpdateSchedule(ctx context.Context, id string, t calendar.WeeklyTemplate) (domain.Worker, error) {
	if err := t.Validate(); err != nil {
		return domain.Worker{}, domain.Validation(domain.CodeInvalidTemplate, err.Error())
	}
	first, days := calendar.MonthHorizon(s.now().In(s.loc))

	unlock := s.locks.Lock(keylock.WorkerKey(id))
	defer unlock()

	w, err := s.rebuild(ctx, id, first, days, func(w *domain.Worker) { w.Template = t })
	if err != nil {
		return domain.Worker{}, err
	}
	s.log.Info("Weekly schedule updated", logger.WorkerID(id), logger.Time("horizon_start", first))
	return w, nil
}

// RollHorizon regenerates every worker's calendar for the current month from
// their stored template. A failing worker is logged and skipped.
func (s *Service) RollHorizon(ctx context.Context) (int, error) {
	first, days := calendar.MonthHorizon(s.now().In(s.loc))
	all, err := s.repo.ListWorkers(ctx, store.WorkerFilter{})
	if err != nil {
		return 0, fmt.Errorf("list workers: %w", err)
	}

	rolled := 0
	var errs []error
	for _, w := range all {
		unlock := s.locks.Lock(keylock.WorkerKey(w.ID))
		_, err := s.rebuild(ctx, w.ID, first, days, nil)
		unlock()
		s.metrics.HorizonRoll(err)
		if err != nil {
			s.log.Error("Horizon roll failed", logger.WorkerID(w.ID), logger.Error(err))
			errs = append(errs, err)
			continue
		}
		rolled++
	}
	s.log.Info("Horizon rolled", logger.Time("horizon_start", first),
		logger.Int("workers", rolled), logger.Int("failed", len(errs)))
	return rolled, errors.Join(errs...)
}

// rebuild regenerates the calendar of worker id over the horizon, re-applying
// every job that still holds a window in it and the imported busy time that
// falls inside it. edit runs before the rebuild. The caller holds the worker
// lock.
func (s *Service) rebuild(ctx context.Context, id string, first time.Time, days int, edit func(*domain.Worker)) (domain.Worker, error) {
	committed, err := s.jobCommitments(ctx, id, first, days)
	if err != nil {
		return domain.Worker{}, err
	}

	w, err := store.MutateWorker(ctx, s.repo, id, func(w *domain.Worker) error {
		if edit != nil {
			edit(w)
		}
		w.BusyBlocks = within(w.BusyBlocks, first, days)
		cal, err := calendar.Rebuild(w.Template, first, days, append(slices.Clone(committed), w.BusyBlocks...))
		if err != nil {
			return fmt.Errorf("rebuild calendar of worker %s: %w", id, err)
		}
		w.Calendar = cal
		w.HorizonStart = first
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.Worker{}, workerNotFound(id)
	}
	return w, err
}

// jobCommitments lists the windows of the worker's jobs that hold time in the
// horizon.
func (s *Service) jobCommitments(ctx context.Context, id string, first time.Time, days int) ([]calendar.Commitment, error) {
	jobs, err := s.repo.ListJobs(ctx, store.JobFilter{
		WorkerID:  id,
		Statuses:  []domain.Status{domain.StatusAssigned, domain.StatusAccepted, domain.StatusInProgress},
		StartFrom: first,
		StartTo:   first.AddDate(0, 0, days),
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs of worker %s: %w", id, err)
	}
	out := make([]calendar.Commitment, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, calendar.Commitment{
			Ref:   j.ID,
			Start: j.StartTime.In(s.loc),
			End:   j.EndTime.In(s.loc),
		})
	}
	return out, nil
}

// within keeps the commitments starting inside the horizon.
func within(cs []calendar.Commitment, first time.Time, days int) []calendar.Commitment {
	var out []calendar.Commitment
	for _, c := range cs {
		if startsIn(c, first, days) {
			out = append(out, c)
		}
	}
	return out
}

func startsIn(c calendar.Commitment, first time.Time, days int) bool {
	return !c.Start.Before(first) && c.Start.Before(first.AddDate(0, 0, days))
}

// SetActive flips whether the worker can be matched.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (domain.Worker, error) {
	unlock := s.locks.Lock(keylock.WorkerKey(id))
	defer unlock()

	w, err := store.MutateWorker(ctx, s.repo, id, func(w *domain.Worker) error {
		w.Active = active
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.Worker{}, workerNotFound(id)
	}
	if err != nil {
		return domain.Worker{}, err
	}
	s.log.Info("Worker active flag set", logger.WorkerID(id), logger.Bool("active", active))
	return w, nil
}

// IsAvailable reports whether the worker's free time holds [start, end).
func (s *Service) IsAvailable(ctx context.Context, id string, start, end time.Time) (bool, error) {
	slot, err := matcher.Resolve(start, end, s.loc)
	if err != nil {
		return false, err
	}
	w, err := s.get(ctx, id)
	if err != nil {
		return false, err
	}
	return w.InHorizon(slot.Date, s.loc) && w.Calendar.IsFree(slot.Day, slot.Window), nil
}

// ImportResult counts what an import did with the busy windows it received.
type ImportResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// ImportBusy replaces the worker's imported busy time with what src reports
// for the current month and regenerates the month around it and the worker's
// jobs. Windows spanning days, falling outside the horizon or not touching any
// free time are skipped.
func (s *Service) ImportBusy(ctx context.Context, id string, src BusySource) (ImportResult, error) {
	if _, err := s.get(ctx, id); err != nil {
		return ImportResult{}, err
	}
	first, days := calendar.MonthHorizon(s.now().In(s.loc))
	busy, err := src.Busy(ctx, first, first.AddDate(0, 0, days))
	if err != nil {
		return ImportResult{}, domain.External(domain.CodeCalendarImportFailed,
			fmt.Sprintf("list busy time of worker %s", id), err)
	}

	unlock := s.locks.Lock(keylock.WorkerKey(id))
	defer unlock()

	committed, err := s.jobCommitments(ctx, id, first, days)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	_, err = store.MutateWorker(ctx, s.repo, id, func(w *domain.Worker) error {
		res = ImportResult{}
		cal, err := calendar.Rebuild(w.Template, first, days, committed)
		if err != nil {
			return fmt.Errorf("rebuild calendar of worker %s: %w", id, err)
		}
		var kept []calendar.Commitment
		for _, b := range busy {
			slot, err := matcher.Resolve(b.Start, b.End, s.loc)
			if err != nil || !startsIn(b, first, days) {
				res.Skipped++
				continue
			}
			if !cal.Subtract(slot.Day, slot.Window) {
				res.Skipped++
				continue
			}
			res.Applied++
			kept = append(kept, calendar.Commitment{Ref: b.Ref, Start: b.Start.In(s.loc), End: b.End.In(s.loc)})
		}
		w.Calendar = cal
		w.BusyBlocks = kept
		w.HorizonStart = first
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ImportResult{}, workerNotFound(id)
	}
	if err != nil {
		return ImportResult{}, err
	}
	s.log.Info("Busy time imported", logger.WorkerID(id),
		logger.Int("applied", res.Applied), logger.Int("skipped", res.Skipped))
	return res, nil
}

func (s *Service) get(ctx context.Context, id string) (domain.Worker, error) {
	w, err := s.repo.GetWorker(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Worker{}, workerNotFound(id)
	}
	if err != nil {
		return domain.Worker{}, fmt.Errorf("get worker %s: %w", id, err)
	}
	return w, nil
}

// horizonRef is a time inside the worker's current horizon.
func (s *Service) horizonRef(w domain.Worker) time.Time {
	if w.HorizonStart.IsZero() {
		return s.now().In(s.loc)
	}
	return w.HorizonStart.In(s.loc)
}

func workerNotFound(id string) error {
	return domain.NotPermitted(domain.CodeWorkerNotFound, fmt.Sprintf("worker %s not found", id))
}
