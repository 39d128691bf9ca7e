package workers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
	"dispatch-service/internal/keylock"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/store"
)

// NewWorker is a worker registration. An empty ID gets a generated one.
type NewWorker struct {
	ID         string
	Name       string
	Email      string
	Categories []int64
	Template   calendar.WeeklyTemplate
	Active     bool
}

// Create registers a worker and lays their template over the current month.
func (s *Service) Create(ctx context.Context, nw NewWorker) (domain.Worker, error) {
	nw.Name = strings.TrimSpace(nw.Name)
	if nw.Name == "" {
		return domain.Worker{}, domain.Validation(domain.CodeInvalidInput, "name is required")
	}
	if err := nw.Template.Validate(); err != nil {
		return domain.Worker{}, domain.Validation(domain.CodeInvalidTemplate, err.Error())
	}
	categories, err := s.checkCategories(ctx, nw.Categories)
	if err != nil {
		return domain.Worker{}, err
	}
	if nw.ID != "" {
		unlock := s.locks.Lock(keylock.WorkerKey(nw.ID))
		defer unlock()
		if _, err := s.repo.GetWorker(ctx, nw.ID); err == nil {
			return domain.Worker{}, domain.NotPermitted(domain.CodeWorkerExists, fmt.Sprintf("worker %s already exists", nw.ID))
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.Worker{}, fmt.Errorf("get worker %s: %w", nw.ID, err)
		}
	}

	first, days := calendar.MonthHorizon(s.now().In(s.loc))
	cal, err := calendar.Build(nw.Template, first, days)
	if err != nil {
		return domain.Worker{}, fmt.Errorf("build calendar: %w", err)
	}
	w, err := s.repo.CreateWorker(ctx, domain.Worker{
		ID:           nw.ID,
		Name:         nw.Name,
		Email:        strings.TrimSpace(nw.Email),
		Active:       nw.Active,
		Categories:   categories,
		Template:     nw.Template,
		Calendar:     cal,
		HorizonStart: first,
	})
	if err != nil {
		return domain.Worker{}, fmt.Errorf("create worker: %w", err)
	}
	s.log.Info("Worker registered", logger.WorkerID(w.ID), logger.Bool("active", w.Active))
	return w, nil
}

// ProfileUpdate changes the fields that are set.
type ProfileUpdate struct {
	Name       *string
	Email      *string
	Categories []int64
}

// UpdateProfile changes the worker's name, email or qualified categories.
// Jobs already assigned keep their worker.
func (s *Service) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (domain.Worker, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.Worker{}, domain.Validation(domain.CodeInvalidInput, "name cannot be empty")
	}
	var categories []int64
	if p.Categories != nil {
		var err error
		if categories, err = s.checkCategories(ctx, p.Categories); err != nil {
			return domain.Worker{}, err
		}
	}

	unlock := s.locks.Lock(keylock.WorkerKey(id))
	defer unlock()

	w, err := store.MutateWorker(ctx, s.repo, id, func(w *domain.Worker) error {
		if p.Name != nil {
			w.Name = strings.TrimSpace(*p.Name)
		}
		if p.Email != nil {
			w.Email = strings.TrimSpace(*p.Email)
		}
		if categories != nil {
			w.Categories = categories
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.Worker{}, workerNotFound(id)
	}
	if err != nil {
		return domain.Worker{}, err
	}
	s.log.Info("Worker profile updated", logger.WorkerID(id))
	return w, nil
}

// List returns the workers matching any of terms, or all of them.
func (s *Service) List(ctx context.Context, terms []string) ([]domain.Worker, error) {
	var clean []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	ws, err := s.repo.ListWorkers(ctx, store.WorkerFilter{Terms: clean})
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	if ws == nil {
		ws = []domain.Worker{}
	}
	return ws, nil
}

// Get returns one worker.
func (s *Service) Get(ctx context.Context, id string) (domain.Worker, error) {
	return s.get(ctx, id)
}

// Comment is what a client said about a worker after a job.
type Comment struct {
	JobID      string    `json:"job_id"`
	ClientID   string    `json:"client_id"`
	ClientName string    `json:"client_name,omitempty"`
	Score      int       `json:"score"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// Profile is a worker with the comments clients left on their jobs.
type Profile struct {
	Worker   domain.Worker `json:"worker"`
	Comments []Comment     `json:"comments"`
}

// GetProfile returns the worker and every rating clients gave them that came
// with a comment, newest job first.
func (s *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	w, err := s.get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	jobs, err := s.repo.ListJobs(ctx, store.JobFilter{
		WorkerID: id,
		Statuses: []domain.Status{domain.StatusCompleted, domain.StatusCancelled},
	})
	if err != nil {
		return Profile{}, fmt.Errorf("list jobs of worker %s: %w", id, err)
	}

	names := map[string]string{}
	out := Profile{Worker: w, Comments: []Comment{}}
	for _, j := range slices.Backward(jobs) {
		if j.WorkerRating == nil || j.WorkerComment == "" {
			continue
		}
		name, seen := names[j.ClientID]
		if !seen {
			if c, err := s.repo.GetClient(ctx, j.ClientID); err == nil {
				name = c.Name
			}
			names[j.ClientID] = name
		}
		out.Comments = append(out.Comments, Comment{
			JobID:      j.ID,
			ClientID:   j.ClientID,
			ClientName: name,
			Score:      *j.WorkerRating,
			Comment:    j.WorkerComment,
			CreatedAt:  j.CreatedAt,
		})
	}
	return out, nil
}

// checkCategories requires a non-empty set of known, active categories and
// returns it sorted without repeats.
func (s *Service) checkCategories(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, domain.Validation(domain.CodeInvalidInput, "at least one category is required")
	}
	out := slices.Compact(slices.Sorted(slices.Values(ids)))
	for _, id := range out {
		c, err := s.repo.GetCategory(ctx, id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !c.Active) {
			return nil, domain.Validation(domain.CodeUnknownCategory, fmt.Sprintf("unknown service category %d", id))
		}
		if err != nil {
			return nil, fmt.Errorf("get category %d: %w", id, err)
		}
	}
	return out, nil
}
