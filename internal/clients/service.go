// Package clients registers the people who request jobs and keeps their
// contact and payment details.
package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dispatch-service/internal/domain"
	"dispatch-service/internal/keylock"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/store"
)

// Deps are the collaborators of a Service. Locks should be the locker the
// job service uses so rating updates and profile edits serialize.
type Deps struct {
	Repo   store.Repository
	Locks  *keylock.Locker
	Logger logger.Logger
}

type Service struct {
	repo  store.Repository
	locks *keylock.Locker
	log   logger.Logger
}

func NewService(d Deps) *Service {
	s := &Service{repo: d.Repo, locks: d.Locks, log: d.Logger}
	if s.locks == nil {
		s.locks = keylock.New()
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	return s
}

// NewClient is a client registration. An empty ID gets a generated one.
type NewClient struct {
	ID             string
	Name           string
	Email          string
	PaymentAccount string
}

// Register stores a new client with no ratings.
func (s *Service) Register(ctx context.Context, nc NewClient) (domain.Client, error) {
	nc.Name = strings.TrimSpace(nc.Name)
	if nc.Name == "" {
		return domain.Client{}, domain.Validation(domain.CodeInvalidInput, "name is required")
	}
	if nc.ID != "" {
		unlock := s.locks.Lock(keylock.ClientKey(nc.ID))
		defer unlock()
		if _, err := s.repo.GetClient(ctx, nc.ID); err == nil {
			return domain.Client{}, domain.NotPermitted(domain.CodeClientExists, fmt.Sprintf("client %s already exists", nc.ID))
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, fmt.Errorf("get client %s: %w", nc.ID, err)
		}
	}
	c, err := s.repo.CreateClient(ctx, domain.Client{
		ID:             nc.ID,
		Name:           nc.Name,
		Email:          strings.TrimSpace(nc.Email),
		PaymentAccount: strings.TrimSpace(nc.PaymentAccount),
	})
	if err != nil {
		return domain.Client{}, fmt.Errorf("create client: %w", err)
	}
	s.log.Info("Client registered", logger.ClientID(c.ID))
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Client, error) {
	c, err := s.repo.GetClient(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, notFound(id)
	}
	if err != nil {
		return domain.Client{}, fmt.Errorf("get client %s: %w", id, err)
	}
	return c, nil
}

// ClientUpdate changes the fields that are set. The rating is only moved by
// job ratings.
type ClientUpdate struct {
	Name           *string
	Email          *string
	PaymentAccount *string
}

func (s *Service) Update(ctx context.Context, id string, u ClientUpdate) (domain.Client, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return domain.Client{}, domain.Validation(domain.CodeInvalidInput, "name cannot be empty")
	}

	unlock := s.locks.Lock(keylock.ClientKey(id))
	defer unlock()

	c, err := store.MutateClient(ctx, s.repo, id, func(c *domain.Client) error {
		if u.Name != nil {
			c.Name = strings.TrimSpace(*u.Name)
		}
		if u.Email != nil {
			c.Email = strings.TrimSpace(*u.Email)
		}
		if u.PaymentAccount != nil {
			c.PaymentAccount = strings.TrimSpace(*u.PaymentAccount)
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, notFound(id)
	}
	if err != nil {
		return domain.Client{}, err
	}
	s.log.Info("Client updated", logger.ClientID(id))
	return c, nil
}

func notFound(id string) error {
	return domain.NotPermitted(domain.CodeClientNotFound, fmt.Sprintf("client %s not found", id))
}
