package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
)

// Memory is a Repository held in process memory. Values are copied on the
// way in and out, so callers never share state with the store.
type Memory struct {
	mu         sync.RWMutex
	categories map[int64]domain.ServiceCategory
	clients    map[string]domain.Client
	workers    map[string]domain.Worker
	jobs       map[string]domain.Job
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		categories: make(map[int64]domain.ServiceCategory),
		clients:    make(map[string]domain.Client),
		workers:    make(map[string]domain.Worker),
		jobs:       make(map[string]domain.Job),
	}
}

func (m *Memory) ListCategories(_ context.Context) ([]domain.ServiceCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ServiceCategory, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetCategory(_ context.Context, id int64) (domain.ServiceCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return domain.ServiceCategory{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) CreateCategory(_ context.Context, c domain.ServiceCategory) (domain.ServiceCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = int64(len(m.categories) + 1)
		for m.categories[c.ID].ID != 0 {
			c.ID++
		}
	}
	m.categories[c.ID] = c
	return c, nil
}

func (m *Memory) GetClient(_ context.Context, id string) (domain.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	if !ok {
		return domain.Client{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) CreateClient(_ context.Context, c domain.Client) (domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Version = 1
	m.clients[c.ID] = c
	return c, nil
}

func (m *Memory) UpdateClient(_ context.Context, c domain.Client) (domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.clients[c.ID]
	if !ok {
		return domain.Client{}, ErrNotFound
	}
	if cur.Version != c.Version {
		return domain.Client{}, ErrConflict
	}
	c.Version++
	m.clients[c.ID] = c
	return c, nil
}

func (m *Memory) GetWorker(_ context.Context, id string) (domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workers[id]
	if !ok {
		return domain.Worker{}, ErrNotFound
	}
	return copyWorker(w), nil
}

func (m *Memory) ListWorkers(_ context.Context, f WorkerFilter) ([]domain.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Worker
	for _, w := range m.workers {
		if f.ActiveOnly && !w.Active {
			continue
		}
		if f.CategoryID != 0 && !w.Qualified(f.CategoryID) {
			continue
		}
		if !f.MatchesTerms(w) {
			continue
		}
		out = append(out, copyWorker(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateWorker(_ context.Context, w domain.Worker) (domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.Version = 1
	m.workers[w.ID] = copyWorker(w)
	return copyWorker(w), nil
}

func (m *Memory) UpdateWorker(_ context.Context, w domain.Worker) (domain.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.workers[w.ID]
	if !ok {
		return domain.Worker{}, ErrNotFound
	}
	if cur.Version != w.Version {
		return domain.Worker{}, ErrConflict
	}
	w.Version++
	m.workers[w.ID] = copyWorker(w)
	return copyWorker(w), nil
}

func (m *Memory) GetJob(_ context.Context, id string) (domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, ErrNotFound
	}
	return copyJob(j), nil
}

func (m *Memory) ListJobs(_ context.Context, f JobFilter) ([]domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Job
	for _, j := range m.jobs {
		if f.WorkerID != "" && !j.AssignedTo(f.WorkerID) {
			continue
		}
		if f.ClientID != "" && j.ClientID != f.ClientID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, j.Status) {
			continue
		}
		if !f.StartFrom.IsZero() && j.StartTime.Before(f.StartFrom) {
			continue
		}
		if !f.StartTo.IsZero() && !j.StartTime.Before(f.StartTo) {
			continue
		}
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].StartTime.Equal(out[k].StartTime) {
			return out[i].ID < out[k].ID
		}
		return out[i].StartTime.Before(out[k].StartTime)
	})
	return out, nil
}

func (m *Memory) CreateJob(_ context.Context, j domain.Job) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	j.Version = 1
	m.jobs[j.ID] = copyJob(j)
	return copyJob(j), nil
}

func (m *Memory) UpdateJob(_ context.Context, j domain.Job) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.jobs[j.ID]
	if !ok {
		return domain.Job{}, ErrNotFound
	}
	if cur.Version != j.Version {
		return domain.Job{}, ErrConflict
	}
	j.Version++
	m.jobs[j.ID] = copyJob(j)
	return copyJob(j), nil
}

func copyWorker(w domain.Worker) domain.Worker {
	w.Categories = slices.Clone(w.Categories)
	w.BusyBlocks = slices.Clone(w.BusyBlocks)
	if w.Calendar != nil {
		w.Calendar = w.Calendar.Clone()
	}
	var tmpl calendar.WeeklyTemplate
	for wd, day := range w.Template {
		for i, slot := range day {
			if slot != nil {
				v := *slot
				tmpl[wd][i] = &v
			}
		}
	}
	w.Template = tmpl
	return w
}

func copyJob(j domain.Job) domain.Job {
	j.WorkerID = clonePtr(j.WorkerID)
	j.StartedAt = clonePtr(j.StartedAt)
	j.CompletedAt = clonePtr(j.CompletedAt)
	j.DurationHours = clonePtr(j.DurationHours)
	j.WorkerRating = clonePtr(j.WorkerRating)
	j.ClientRating = clonePtr(j.ClientRating)
	return j
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
