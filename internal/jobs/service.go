// Package jobs runs the job lifecycle: creation with worker matching, status
// transitions with their payment and calendar side effects, the cash payment
// sub-flow and ratings.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch-service/internal/domain"
	"dispatch-service/internal/keylock"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/matcher"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/notify"
	"dispatch-service/internal/payment"
	"dispatch-service/internal/store"
)

// Result is a job after a successful operation plus any calendar drift found
// along the way. Warnings never mean the operation failed.
type Result struct {
	Job      domain.Job
	Warnings []error
}

// Deps are the collaborators of a Service. Metrics may be nil.
type Deps struct {
	Repo     store.Repository
	Matcher  *matcher.Matcher
	Payments payment.Gateway
	Notifier notify.Notifier
	Locks    *keylock.Locker
	Metrics  *metrics.Metrics
	Logger   logger.Logger
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo     store.Repository
	matcher  *matcher.Matcher
	payments payment.Gateway
	notifier notify.Notifier
	locks    *keylock.Locker
	metrics  *metrics.Metrics
	log      logger.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:     d.Repo,
		matcher:  d.Matcher,
		payments: d.Payments,
		notifier: d.Notifier,
		locks:    d.Locks,
		metrics:  d.Metrics,
		log:      d.Logger,
		loc:      d.Location,
		now:      d.Now,
	}
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
	if s.matcher == nil {
		s.matcher = matcher.New(d.Repo, s.loc)
	}
	return s
}

// CreateRequest is a client's request for work.
type CreateRequest struct {
	ClientID       string
	CategoryID     int64
	Description    string
	Specifications string
	Location       string
	Start          time.Time
	End            time.Time
	PaymentMethod  domain.PaymentMethod
	// AmountCents defaults to the category's hourly rate over the window.
	AmountCents int64
}

// Create validates the request, matches a worker and stores the job as
// ASSIGNED. With no eligible worker the job is stored REJECTED and only the
// client hears about it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Result, error) {
	if req.ClientID == "" {
		return Result{}, domain.Validation(domain.CodeInvalidInput, "client_id is required")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCard
	}
	if req.PaymentMethod != domain.PaymentCard && req.PaymentMethod != domain.PaymentCash {
		return Result{}, domain.Validation(domain.CodeInvalidInput, fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
	slot, err := matcher.Resolve(req.Start, req.End, s.loc)
	if err != nil {
		return Result{}, err
	}
	now := s.now()
	if !req.Start.After(now) {
		return Result{}, domain.Validation(domain.CodeInvalidWindow, "start_time must be in the future")
	}

	category, err := s.repo.GetCategory(ctx, req.CategoryID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !category.Active) {
		return Result{}, domain.Validation(domain.CodeUnknownCategory, fmt.Sprintf("unknown service category %d", req.CategoryID))
	}
	if err != nil {
		return Result{}, fmt.Errorf("get category %d: %w", req.CategoryID, err)
	}
	amount := req.AmountCents
	if amount == 0 {
		amount = category.BaseRatePerHourCts * int64(slot.Window.Minutes()) / 60
	}
	if amount <= 0 {
		return Result{}, domain.Validation(domain.CodeInvalidInput, "amount must be positive")
	}

	if _, err := s.repo.GetClient(ctx, req.ClientID); err != nil {
		return Result{}, notFound(err, domain.CodeClientNotFound, "client", req.ClientID)
	}

	w, found, err := s.matcher.Find(ctx, matcher.Request{CategoryID: req.CategoryID, Start: req.Start, End: req.End})
	if err != nil {
		return Result{}, err
	}
	s.metrics.Match("create", found)

	job := domain.Job{
		ClientID:       req.ClientID,
		CategoryID:     req.CategoryID,
		Description:    req.Description,
		Specifications: req.Specifications,
		Location:       req.Location,
		RequestedAt:    now,
		StartTime:      req.Start,
		EndTime:        req.End,
		Status:         domain.StatusRejected,
		AmountCents:    amount,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  domain.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if found {
		job.Status = domain.StatusAssigned
		job.WorkerID = &w.ID
	}

	job, err = s.repo.CreateJob(ctx, job)
	if err != nil {
		return Result{}, fmt.Errorf("create job: %w", err)
	}

	if found {
		s.log.Info("Job assigned", logger.JobID(job.ID), logger.WorkerID(w.ID))
		s.notify(ctx, job, notify.KindJobAssigned, job.ClientID, w.ID)
	} else {
		s.log.Info("Job rejected, no eligible worker", logger.JobID(job.ID), logger.Int64("category_id", job.CategoryID))
		s.notify(ctx, job, notify.KindJobRejected, job.ClientID)
	}
	return Result{Job: job}, nil
}

// Get returns a job.
func (s *Service) Get(ctx context.Context, id string) (domain.Job, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return domain.Job{}, notFound(err, domain.CodeJobNotFound, "job", id)
	}
	return job, nil
}

// ListForWorker returns the worker's jobs, optionally restricted to statuses.
func (s *Service) ListForWorker(ctx context.Context, workerID string, statuses ...domain.Status) ([]domain.Job, error) {
	if _, err := s.repo.GetWorker(ctx, workerID); err != nil {
		return nil, notFound(err, domain.CodeWorkerNotFound, "worker", workerID)
	}
	return s.repo.ListJobs(ctx, store.JobFilter{WorkerID: workerID, Statuses: statuses})
}

// ListForClient returns the client's jobs, optionally restricted to statuses.
func (s *Service) ListForClient(ctx context.Context, clientID string, statuses ...domain.Status) ([]domain.Job, error) {
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, notFound(err, domain.CodeClientNotFound, "client", clientID)
	}
	return s.repo.ListJobs(ctx, store.JobFilter{ClientID: clientID, Statuses: statuses})
}

// Categories lists the service catalog.
func (s *Service) Categories(ctx context.Context) ([]domain.ServiceCategory, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) save(ctx context.Context, job domain.Job) (domain.Job, error) {
	job.UpdatedAt = s.now()
	saved, err := s.repo.UpdateJob(ctx, job)
	switch {
	case err == nil:
		return saved, nil
	case errors.Is(err, store.ErrConflict):
		return domain.Job{}, &domain.Error{
			Kind: domain.KindNotPermitted, Code: domain.CodeConcurrentUpdate,
			Message: fmt.Sprintf("job %s was changed concurrently", job.ID), Err: err,
		}
	default:
		return domain.Job{}, notFound(err, domain.CodeJobNotFound, "job", job.ID)
	}
}

func (s *Service) notify(ctx context.Context, job domain.Job, kind notify.Kind, users ...string) {
	if s.notifier == nil {
		return
	}
	for _, u := range users {
		s.notifier.Notify(ctx, notify.Notification{UserID: u, JobID: job.ID, Kind: kind, SentAt: s.now()})
	}
}

// notFound turns store.ErrNotFound into a not-permitted error with code and
// wraps anything else.
func notFound(err error, code, what, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotPermitted(code, fmt.Sprintf("%s %s not found", what, id))
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}
