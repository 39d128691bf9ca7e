package store

import (
	"context"
	"errors"

	"dispatch-service/internal/domain"
)

// MaxAttempts bounds the read-modify-write retries of MutateWorker and MutateClient.
const MaxAttempts = 3

// MutateWorker reads the worker, applies fn and writes it back, retrying on
// ErrConflict. An error from fn stops the loop and is returned as is.
func MutateWorker(ctx context.Context, repo Repository, id string, fn func(*domain.Worker) error) (domain.Worker, error) {
	var err error
	for range MaxAttempts {
		var w domain.Worker
		if w, err = repo.GetWorker(ctx, id); err != nil {
			return domain.Worker{}, err
		}
		if err = fn(&w); err != nil {
			return domain.Worker{}, err
		}
		if w, err = repo.UpdateWorker(ctx, w); err == nil {
			return w, nil
		}
		if !errors.Is(err, ErrConflict) {
			return domain.Worker{}, err
		}
	}
	return domain.Worker{}, err
}

// MutateClient is MutateWorker for clients.
func MutateClient(ctx context.Context, repo Repository, id string, fn func(*domain.Client) error) (domain.Client, error) {
	var err error
	for range MaxAttempts {
		var c domain.Client
		if c, err = repo.GetClient(ctx, id); err != nil {
			return domain.Client{}, err
		}
		if err = fn(&c); err != nil {
			return domain.Client{}, err
		}
		if c, err = repo.UpdateClient(ctx, c); err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrConflict) {
			return domain.Client{}, err
		}
	}
	return domain.Client{}, err
}
