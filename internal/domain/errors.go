package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an entity, account, or run id does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a lockout transition loses a concurrent race.
// Callers should re-read state and retry; the idempotency checks make an
// identical re-submission safe.
var ErrConflict = errors.New("concurrent update conflict")

// LockErrorKind enumerates the user errors a lockout transition can produce.
type LockErrorKind string

const (
	LockBadToken      LockErrorKind = "bad_confirmation_token"
	LockAlreadyLocked LockErrorKind = "already_locked"
	LockNotLocked     LockErrorKind = "not_locked"
)

// LockError is a typed rejection of a lock/unlock request. The transition is
// never partially applied: no state change, no history entry.
type LockError struct {
	Kind      LockErrorKind
	AccountID string
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lockout: account %s: %s", e.AccountID, e.Kind)
}

// ConfigError reports an invalid threshold policy at load time. The policy is
// unusable until corrected.
type ConfigError struct {
	Category Category
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("policy %q: %s: %s", e.Category, e.Field, e.Reason)
}

// SamplingError rejects an invalid sampling request before any draw occurs.
type SamplingError struct {
	Field  string
	Reason string
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("sampling: %s: %s", e.Field, e.Reason)
}
