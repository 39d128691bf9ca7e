package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
	"dispatch-service/internal/keylock"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/matcher"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/payment"
	"dispatch-service/internal/store"
)

// Transition moves a job to status to. Pairs outside the lifecycle are
// rejected with transition_not_permitted and leave the job untouched.
func (s *Service) Transition(ctx context.Context, id string, to domain.Status) (Result, error) {
	unlock := s.locks.Lock(keylock.JobKey(id))
	defer unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	from := job.Status

	var res Result
	switch {
	case from == domain.StatusAssigned && to == domain.StatusAccepted:
		res, err = s.accept(ctx, job)
	case from == domain.StatusAssigned && to == domain.StatusCancelled:
		res, err = s.reassign(ctx, job)
	case from == domain.StatusAccepted && to == domain.StatusInProgress:
		res, err = s.start(ctx, job)
	case from.Committed() && to == domain.StatusCancelled:
		res, err = s.cancel(ctx, job)
	case from == domain.StatusInProgress && to == domain.StatusCompleted:
		res, err = s.complete(ctx, job)
	default:
		err = domain.NotPermitted(domain.CodeTransitionNotPermitted,
			fmt.Sprintf("job %s cannot go from %s to %s", id, from, to))
	}

	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	s.metrics.Transition(string(from), string(to), outcome)
	if err != nil {
		s.log.Warn("Transition failed",
			logger.JobID(id),
			logger.String("from", string(from)),
			logger.String("to", string(to)),
			logger.Error(err),
		)
		return Result{}, err
	}
	s.log.Info("Job transitioned",
		logger.JobID(id),
		logger.String("from", string(from)),
		logger.String("to", string(res.Job.Status)),
	)
	return res, nil
}

// accept charges card jobs, then commits the window to the worker calendar.
// A failure after the charge refunds it, so a failed accept never leaves the
// client charged for a window the worker does not hold.
func (s *Service) accept(ctx context.Context, job domain.Job) (Result, error) {
	if job.WorkerID == nil {
		return Result{}, domain.NotPermitted(domain.CodeWorkerNotFound, fmt.Sprintf("job %s has no worker", job.ID))
	}
	workerID := *job.WorkerID
	slot, err := matcher.Resolve(job.StartTime, job.EndTime, s.loc)
	if err != nil {
		return Result{}, err
	}

	if job.PaymentMethod == domain.PaymentCard {
		ref, err := s.payments.Charge(ctx, job.ClientID, job.AmountCents)
		if err != nil {
			return Result{}, domain.External(domain.CodePaymentFailed,
				fmt.Sprintf("charge client %s for job %s", job.ClientID, job.ID), err)
		}
		job.PaymentReference = ref
	}

	unlockWorker := s.locks.Lock(keylock.WorkerKey(workerID))
	defer unlockWorker()

	before, drift, err := s.commitWindow(ctx, workerID, job.ID, slot)
	if err != nil {
		return Result{}, domain.External(domain.CodeCalendarCommitFailed,
			fmt.Sprintf("commit job %s to calendar of worker %s", job.ID, workerID),
			errors.Join(err, s.undoCharge(ctx, job)))
	}

	job.Status = domain.StatusAccepted
	saved, err := s.save(ctx, job)
	if err != nil {
		if drift == nil {
			err = errors.Join(err, s.putBackDay(ctx, workerID, job.ID, slot.Day, before))
		}
		return Result{}, errors.Join(err, s.undoCharge(ctx, job))
	}

	s.notify(ctx, saved, notify.KindJobAccepted, saved.ClientID, workerID)
	return Result{Job: saved, Warnings: warnings(drift)}, nil
}

// reassign handles a cancellation before acceptance: the job goes to another
// eligible worker, or is rejected when there is none.
func (s *Service) reassign(ctx context.Context, job domain.Job) (Result, error) {
	var previous string
	if job.WorkerID != nil {
		previous = *job.WorkerID
	}

	w, found, err := s.matcher.Find(ctx, matcher.Request{
		CategoryID:      job.CategoryID,
		Start:           job.StartTime,
		End:             job.EndTime,
		ExcludeWorkerID: previous,
	})
	if err != nil {
		return Result{}, err
	}
	s.metrics.Match("reassign", found)

	if found {
		job.Status = domain.StatusAssigned
		job.WorkerID = &w.ID
	} else {
		job.Status = domain.StatusRejected
		job.WorkerID = nil
	}
	saved, err := s.save(ctx, job)
	if err != nil {
		return Result{}, err
	}

	if found {
		s.log.Info("Job reassigned", logger.JobID(job.ID),
			logger.String("previous_worker_id", previous), logger.WorkerID(w.ID))
		s.notify(ctx, saved, notify.KindJobReassigned, saved.ClientID)
		s.notify(ctx, saved, notify.KindJobAssigned, w.ID)
	} else {
		s.notify(ctx, saved, notify.KindJobRejected, saved.ClientID)
	}
	return Result{Job: saved}, nil
}

func (s *Service) start(ctx context.Context, job domain.Job) (Result, error) {
	now := s.now()
	job.Status = domain.StatusInProgress
	job.StartedAt = &now
	saved, err := s.save(ctx, job)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, saved, notify.KindJobStarted, saved.ClientID)
	return Result{Job: saved}, nil
}

// cancel ends an accepted or running job: refund, mark cancelled, give the
// window back to the worker.
func (s *Service) cancel(ctx context.Context, job domain.Job) (Result, error) {
	if job.Charged() {
		err := s.payments.Refund(ctx, job.PaymentReference)
		if err != nil && !errors.Is(err, payment.ErrNothingToRefund) {
			return Result{}, domain.External(domain.CodeRefundFailed,
				fmt.Sprintf("refund %s for job %s", job.PaymentReference, job.ID), err)
		}
	}

	job.Status = domain.StatusCancelled
	saved, err := s.save(ctx, job)
	if err != nil {
		if job.Charged() {
			s.log.Error("Job refunded but not cancelled", logger.JobID(job.ID), logger.Error(err))
		}
		return Result{}, err
	}

	var warns []error
	users := []string{saved.ClientID}
	if job.WorkerID != nil {
		users = append(users, *job.WorkerID)
		if slot, err := matcher.Resolve(job.StartTime, job.EndTime, s.loc); err == nil {
			unlockWorker := s.locks.Lock(keylock.WorkerKey(*job.WorkerID))
			drift, err := s.releaseWindow(ctx, *job.WorkerID, job.ID, slot)
			unlockWorker()
			if err != nil {
				s.log.Error("Failed to restore calendar window", logger.JobID(job.ID),
					logger.WorkerID(*job.WorkerID), logger.Error(err))
				drift = domain.Consistency(domain.CodeCalendarDrift,
					fmt.Sprintf("window of job %s was not restored to worker %s", job.ID, *job.WorkerID))
			}
			warns = warnings(drift)
		}
	}

	s.notify(ctx, saved, notify.KindJobCancelled, users...)
	return Result{Job: saved, Warnings: warns}, nil
}

// complete requires the payment to have been collected.
func (s *Service) complete(ctx context.Context, job domain.Job) (Result, error) {
	switch job.PaymentMethod {
	case domain.PaymentCash:
		if job.PaymentStatus != domain.PaymentPaid {
			return Result{}, domain.NotPermitted(domain.CodePaymentNotCollected,
				fmt.Sprintf("cash payment of job %s is %s, not paid", job.ID, job.PaymentStatus))
		}
	default:
		if !job.Charged() {
			return Result{}, domain.NotPermitted(domain.CodePaymentNotCollected,
				fmt.Sprintf("card payment of job %s was never captured", job.ID))
		}
	}

	now := s.now()
	started := job.StartTime
	if job.StartedAt != nil {
		started = *job.StartedAt
	}
	hours := math.Max(0, math.Round(now.Sub(started).Hours()*100)/100)

	job.Status = domain.StatusCompleted
	job.CompletedAt = &now
	job.DurationHours = &hours
	saved, err := s.save(ctx, job)
	if err != nil {
		return Result{}, err
	}

	users := []string{saved.ClientID}
	if saved.WorkerID != nil {
		users = append(users, *saved.WorkerID)
	}
	s.notify(ctx, saved, notify.KindJobCompleted, users...)
	return Result{Job: saved}, nil
}

// commitWindow removes slot from the worker's free time and returns the
// day's intervals as they were before. The returned drift is non-nil when the
// calendar had nothing to remove. The caller holds the worker lock.
func (s *Service) commitWindow(ctx context.Context, workerID, jobID string, slot matcher.Slot) (before []calendar.Interval, drift, err error) {
	drift, err = s.mutateCalendar(ctx, workerID, jobID, slot, "subtract", func(cal calendar.Calendar) bool {
		before = cal.Intervals(slot.Day)
		return cal.Subtract(slot.Day, slot.Window)
	})
	return before, drift, err
}

// releaseWindow gives slot back to the worker's free time. The caller holds
// the worker lock.
func (s *Service) releaseWindow(ctx context.Context, workerID, jobID string, slot matcher.Slot) (drift, err error) {
	return s.mutateCalendar(ctx, workerID, jobID, slot, "restore", func(cal calendar.Calendar) bool {
		return cal.Restore(slot.Day, slot.Window)
	})
}

func (s *Service) mutateCalendar(ctx context.Context, workerID, jobID string, slot matcher.Slot, op string, apply func(calendar.Calendar) bool) (drift, err error) {
	_, err = store.MutateWorker(ctx, s.repo, workerID, func(w *domain.Worker) error {
		applied := w.InHorizon(slot.Date, s.loc) && apply(w.Calendar)
		drift = nil
		if !applied {
			drift = domain.Consistency(domain.CodeCalendarDrift,
				fmt.Sprintf("%s of %s on day %d found no matching free time for worker %s",
					op, slot.Window, slot.Day, workerID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if drift != nil {
		s.metrics.Drift(op)
		s.log.Warn("Calendar drift", logger.JobID(jobID), logger.WorkerID(workerID),
			logger.String("operation", op), logger.Int("day", int(slot.Day)),
			logger.String("window", slot.Window.String()))
	}
	return drift, nil
}

// putBackDay undoes a commit whose job update then failed by writing the day
// back exactly as commitWindow found it. The caller holds the worker lock.
func (s *Service) putBackDay(ctx context.Context, workerID, jobID string, day calendar.Day, before []calendar.Interval) error {
	_, err := store.MutateWorker(ctx, s.repo, workerID, func(w *domain.Worker) error {
		if w.Calendar == nil {
			w.Calendar = calendar.Calendar{}
		}
		w.Calendar[day] = before
		return nil
	})
	s.metrics.Compensation("calendar_restore", err)
	if err != nil {
		s.log.Error("Failed to put back calendar day", logger.JobID(jobID),
			logger.WorkerID(workerID), logger.Int("day", int(day)), logger.Error(err))
		return fmt.Errorf("put back day %d of worker %s: %w", day, workerID, err)
	}
	return nil
}

// undoCharge refunds a charge taken during a transition that then failed.
func (s *Service) undoCharge(ctx context.Context, job domain.Job) error {
	if !job.Charged() {
		return nil
	}
	err := s.payments.Refund(ctx, job.PaymentReference)
	s.metrics.Compensation("refund", err)
	if err != nil {
		s.log.Error("Compensating refund failed", logger.JobID(job.ID),
			logger.String("payment_reference", job.PaymentReference), logger.Error(err))
		return domain.External(domain.CodeRefundFailed, "compensating refund", err)
	}
	s.log.Warn("Charge refunded after failed accept", logger.JobID(job.ID),
		logger.String("payment_reference", job.PaymentReference))
	return nil
}

func warnings(errs ...error) []error {
	var out []error
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
