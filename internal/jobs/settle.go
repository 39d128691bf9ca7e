package jobs

import (
	"context"
	"fmt"

	"dispatch-service/internal/domain"
	"dispatch-service/internal/keylock"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/rating"
	"dispatch-service/internal/store"
)

// SetPaymentStatus advances the cash collection of a running job:
// pending, then issued, then paid.
func (s *Service) SetPaymentStatus(ctx context.Context, id string, to domain.PaymentStatus) (Result, error) {
	unlock := s.locks.Lock(keylock.JobKey(id))
	defer unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if job.PaymentMethod != domain.PaymentCash {
		return Result{}, domain.NotPermitted(domain.CodePaymentStatusNotPermitted,
			fmt.Sprintf("job %s is paid by %s, not cash", id, job.PaymentMethod))
	}
	if job.Status != domain.StatusInProgress {
		return Result{}, domain.NotPermitted(domain.CodePaymentStatusNotPermitted,
			fmt.Sprintf("job %s is %s; payment status changes only while in progress", id, job.Status))
	}
	from := job.PaymentStatus
	if from == "" {
		from = domain.PaymentPending
	}
	if !(from == domain.PaymentPending && to == domain.PaymentIssued) &&
		!(from == domain.PaymentIssued && to == domain.PaymentPaid) {
		return Result{}, domain.NotPermitted(domain.CodePaymentStatusNotPermitted,
			fmt.Sprintf("payment status of job %s cannot go from %s to %s", id, from, to))
	}

	job.PaymentStatus = to
	saved, err := s.save(ctx, job)
	if err != nil {
		return Result{}, err
	}
	s.log.Info("Payment status changed", logger.JobID(id), logger.String("payment_status", string(to)))

	users := []string{saved.ClientID}
	if saved.WorkerID != nil {
		users = append(users, *saved.WorkerID)
	}
	s.notify(ctx, saved, notify.KindPaymentStatus, users...)
	return Result{Job: saved}, nil
}

// Rate records the rater's score for the other party of a finished job. A
// second submission replaces the first, and the ratee's mean drops the old
// score before taking the new one.
func (s *Service) Rate(ctx context.Context, id string, rater rating.Rater, score int, comment string) (Result, error) {
	if !rating.ValidScore(score) {
		return Result{}, domain.Validation(domain.CodeInvalidInput,
			fmt.Sprintf("score %d is outside %d..%d", score, rating.MinScore, rating.MaxScore))
	}

	unlock := s.locks.Lock(keylock.JobKey(id))
	defer unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !job.Status.Rateable() {
		return Result{}, domain.NotPermitted(domain.CodeRatingNotPermitted,
			fmt.Sprintf("job %s is %s; ratings open once it is completed or cancelled", id, job.Status))
	}
	if job.WorkerID == nil {
		return Result{}, domain.NotPermitted(domain.CodeRatingNotPermitted, fmt.Sprintf("job %s has no worker", id))
	}

	switch r := rater.(type) {
	case rating.ByClient:
		if r.ClientID != job.ClientID {
			return Result{}, notParty(id, r.ClientID)
		}
		return s.rateWorker(ctx, job, score, comment)
	case rating.ByWorker:
		if r.WorkerID != *job.WorkerID {
			return Result{}, notParty(id, r.WorkerID)
		}
		return s.rateClient(ctx, job, score, comment)
	default:
		return Result{}, domain.Validation(domain.CodeInvalidInput, "unknown rater")
	}
}

func (s *Service) rateWorker(ctx context.Context, job domain.Job, score int, comment string) (Result, error) {
	workerID := *job.WorkerID
	prev, prevComment := job.WorkerRating, job.WorkerComment

	job.WorkerRating, job.WorkerComment = &score, comment
	saved, err := s.save(ctx, job)
	if err != nil {
		return Result{}, err
	}

	unlock := s.locks.Lock(keylock.WorkerKey(workerID))
	_, err = store.MutateWorker(ctx, s.repo, workerID, func(w *domain.Worker) error {
		rating.ApplyToWorker(w, prev, score)
		return nil
	})
	unlock()
	if err != nil {
		saved.WorkerRating, saved.WorkerComment = prev, prevComment
		return Result{}, s.revertRating(ctx, saved, fmt.Errorf("update rating of worker %s: %w", workerID, err))
	}

	s.notify(ctx, saved, notify.KindRatingReceived, workerID)
	return Result{Job: saved}, nil
}

func (s *Service) rateClient(ctx context.Context, job domain.Job, score int, comment string) (Result, error) {
	clientID := job.ClientID
	prev, prevComment := job.ClientRating, job.ClientComment

	job.ClientRating, job.ClientComment = &score, comment
	saved, err := s.save(ctx, job)
	if err != nil {
		return Result{}, err
	}

	unlock := s.locks.Lock(keylock.ClientKey(clientID))
	_, err = store.MutateClient(ctx, s.repo, clientID, func(c *domain.Client) error {
		rating.ApplyToClient(c, prev, score)
		return nil
	})
	unlock()
	if err != nil {
		saved.ClientRating, saved.ClientComment = prev, prevComment
		return Result{}, s.revertRating(ctx, saved, fmt.Errorf("update rating of client %s: %w", clientID, err))
	}

	s.notify(ctx, saved, notify.KindRatingReceived, clientID)
	return Result{Job: saved}, nil
}

// revertRating puts the job's previous rating back after the ratee could not
// be updated, and returns cause.
func (s *Service) revertRating(ctx context.Context, job domain.Job, cause error) error {
	if _, err := s.save(ctx, job); err != nil {
		s.log.Error("Failed to revert job rating", logger.JobID(job.ID), logger.Error(err))
	}
	return cause
}

func notParty(jobID, raterID string) error {
	return domain.NotPermitted(domain.CodeRatingNotPermitted,
		fmt.Sprintf("%s is not the counterpart of job %s", raterID, jobID))
}
