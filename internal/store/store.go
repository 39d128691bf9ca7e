// Package store persists categories, clients, workers and jobs. Updates are
// conditional on the version read, so concurrent writers cannot overwrite each
// other silently.
package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"dispatch-service/internal/domain"
)

var (
	// ErrNotFound is returned when no row has the requested id.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when the stored version differs from the one being updated.
	ErrConflict = errors.New("version conflict")
)

// WorkerFilter narrows ListWorkers. Zero values do not filter.
type WorkerFilter struct {
	ActiveOnly bool
	CategoryID int64
	// Terms keeps workers matching any term: a category id written in full,
	// or part of the name or email, ignoring case.
	Terms []string
}

// MatchesTerms reports whether w passes the Terms of f.
func (f WorkerFilter) MatchesTerms(w domain.Worker) bool {
	if len(f.Terms) == 0 {
		return true
	}
	name, email := strings.ToLower(w.Name), strings.ToLower(w.Email)
	for _, term := range f.Terms {
		if id, err := strconv.ParseInt(term, 10, 64); err == nil && w.Qualified(id) {
			return true
		}
		term = strings.ToLower(term)
		if strings.Contains(name, term) || strings.Contains(email, term) {
			return true
		}
	}
	return false
}

// JobFilter narrows ListJobs. Zero values do not filter.
type JobFilter struct {
	WorkerID  string
	ClientID  string
	Statuses  []domain.Status
	StartFrom time.Time
	StartTo   time.Time
}

// Repository is the persistence collaborator.
type Repository interface {
	ListCategories(ctx context.Context) ([]domain.ServiceCategory, error)
	GetCategory(ctx context.Context, id int64) (domain.ServiceCategory, error)
	CreateCategory(ctx context.Context, c domain.ServiceCategory) (domain.ServiceCategory, error)

	GetClient(ctx context.Context, id string) (domain.Client, error)
	CreateClient(ctx context.Context, c domain.Client) (domain.Client, error)
	UpdateClient(ctx context.Context, c domain.Client) (domain.Client, error)

	GetWorker(ctx context.Context, id string) (domain.Worker, error)
	ListWorkers(ctx context.Context, f WorkerFilter) ([]domain.Worker, error)
	CreateWorker(ctx context.Context, w domain.Worker) (domain.Worker, error)
	UpdateWorker(ctx context.Context, w domain.Worker) (domain.Worker, error)

	GetJob(ctx context.Context, id string) (domain.Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error)
	CreateJob(ctx context.Context, j domain.Job) (domain.Job, error)
	UpdateJob(ctx context.Context, j domain.Job) (domain.Job, error)
}
