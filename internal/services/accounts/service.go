// Package accounts is the use-case layer over the lockout state machine: it
// loads account state through the repository port, applies validated
// transitions, and records the outcome.
package accounts

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"attest/internal/domain"
	"attest/internal/lockout"
	"attest/internal/metrics"
	"attest/internal/ports"
)

type Service struct {
	repo    ports.LockoutRepository
	policy  lockout.Policy
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option tweaks Service construction.
type Option func(*Service)

// WithClock pins transition timestamps, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(repo ports.LockoutRepository, pol lockout.Policy, log *zap.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{repo: repo, policy: pol, log: log, metrics: m, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Get(ctx context.Context, accountID string) (domain.LockoutAccount, error) {
	return s.repo.GetAccount(ctx, accountID)
}

// Lock applies a confirmation-gated manual lock. Serialization happens in
// the repository; the machine's idempotency checks make a retried identical
// request a rejected no-op rather than a duplicate history entry.
func (s *Service) Lock(ctx context.Context, accountID, token, reason, notes, actorID string) (domain.LockoutAccount, error) {
	acct, err := s.repo.Transition(ctx, accountID, func(a domain.LockoutAccount) (domain.LockoutAccount, error) {
		return lockout.Lock(a, token, reason, notes, actorID, s.now())
	})
	s.record("lock", err)
	if err != nil {
		return acct, err
	}
	s.log.Info("account locked",
		zap.String("account_id", accountID),
		zap.String("actor_id", actorID),
		zap.String("reason", reason))
	return acct, nil
}

// Unlock releases a locked account with optional notes.
func (s *Service) Unlock(ctx context.Context, accountID, notes, actorID string) (domain.LockoutAccount, error) {
	acct, err := s.repo.Transition(ctx, accountID, func(a domain.LockoutAccount) (domain.LockoutAccount, error) {
		return lockout.Unlock(a, notes, actorID, s.now())
	})
	s.record("unlock", err)
	if err != nil {
		return acct, err
	}
	s.log.Info("account unlocked",
		zap.String("account_id", accountID),
		zap.String("actor_id", actorID))
	return acct, nil
}

// SyncOverdue applies a billing import: automatic warning/overdue
// progression, system-driven and not confirmation-gated. Unknown accounts
// are created on first sight so imports can run before any manual action.
func (s *Service) SyncOverdue(ctx context.Context, accountID string, daysOverdue int) (domain.LockoutAccount, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); errors.Is(err, domain.ErrNotFound) {
		if _, err := s.repo.CreateAccount(ctx, accountID, daysOverdue); err != nil && !errors.Is(err, domain.ErrConflict) {
			return domain.LockoutAccount{}, err
		}
	} else if err != nil {
		return domain.LockoutAccount{}, err
	}
	return s.repo.Transition(ctx, accountID, func(a domain.LockoutAccount) (domain.LockoutAccount, error) {
		return lockout.SyncOverdue(s.policy, a, daysOverdue), nil
	})
}

func (s *Service) record(action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	var lockErr *domain.LockError
	switch {
	case err == nil:
	case errors.As(err, &lockErr):
		outcome = string(lockErr.Kind)
	case errors.Is(err, domain.ErrConflict):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	s.metrics.LockTransitions.WithLabelValues(action, outcome).Inc()
}
