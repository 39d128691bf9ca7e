// Package payment is the card payment collaborator: charge a client, refund a
// charge.
package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoPaymentMethod   = errors.New("no payment method on file")
	ErrProvider          = errors.New("payment provider error")
	ErrNothingToRefund   = errors.New("nothing to refund")
)

// Gateway charges and refunds. References returned by Charge are opaque.
type Gateway interface {
	Charge(ctx context.Context, clientID string, amountCents int64) (string, error)
	Refund(ctx context.Context, reference string) error
}

type charge struct {
	clientID string
	amount   int64
	refunded bool
}

// Sandbox is an in-process Gateway keeping a balance per client. Every client
// starts with the opening balance unless told otherwise.
type Sandbox struct {
	mu       sync.Mutex
	opening  int64
	balances map[string]int64
	noMethod map[string]bool
	charges  map[string]*charge
	failNext error
}

func NewSandbox(openingBalanceCents int64) *Sandbox {
	return &Sandbox{
		opening:  openingBalanceCents,
		balances: make(map[string]int64),
		noMethod: make(map[string]bool),
		charges:  make(map[string]*charge),
	}
}

func (s *Sandbox) Charge(ctx context.Context, clientID string, amountCents int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Join(ErrProvider, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return "", err
	}
	if s.noMethod[clientID] {
		return "", ErrNoPaymentMethod
	}
	bal := s.balanceLocked(clientID)
	if amountCents > bal {
		return "", ErrInsufficientFunds
	}
	s.balances[clientID] = bal - amountCents

	ref := "ch_" + uuid.NewString()
	s.charges[ref] = &charge{clientID: clientID, amount: amountCents}
	return ref, nil
}

func (s *Sandbox) Refund(ctx context.Context, reference string) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrProvider, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return err
	}
	c, ok := s.charges[reference]
	if !ok || c.refunded {
		return ErrNothingToRefund
	}
	c.refunded = true
	s.balances[c.clientID] = s.balanceLocked(c.clientID) + c.amount
	return nil
}

// Balance reports a client's current balance.
func (s *Sandbox) Balance(clientID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(clientID)
}

func (s *Sandbox) SetBalance(clientID string, cents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[clientID] = cents
}

// RemoveMethod makes every later charge for clientID fail with ErrNoPaymentMethod.
func (s *Sandbox) RemoveMethod(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noMethod[clientID] = true
}

// FailNext makes the next Charge or Refund return err.
func (s *Sandbox) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Refunded reports whether reference was charged and then refunded.
func (s *Sandbox) Refunded(reference string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charges[reference]
	return ok && c.refunded
}

func (s *Sandbox) balanceLocked(clientID string) int64 {
	if b, ok := s.balances[clientID]; ok {
		return b
	}
	return s.opening
}

func (s *Sandbox) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}
