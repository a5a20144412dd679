// Package lockout governs the billing-account lifecycle:
//
//	active → warning → overdue → locked → paid → active
//
// The first two hops are automatic, driven by days overdue. Locking is
// manual and confirmation-gated; unlocking is manual. Every manual
// transition appends an immutable event to the account history, and current
// state is always recoverable by replaying that history.
package lockout

import (
	"time"

	"github.com/google/uuid"

	"attest/internal/domain"
)

// ConfirmationToken is the literal an operator must type to lock an account.
const ConfirmationToken = "LOCK"

// Policy defines the automatic progression windows. An account with
// 0 < daysOverdue < OverdueDays is in the warning window; at OverdueDays and
// beyond it is overdue. Locking remains a manual decision in either window.
type Policy struct {
	OverdueDays int
}

// DefaultPolicy matches the standard billing cycle: one missed period puts
// the account in warning, a second makes it overdue.
var DefaultPolicy = Policy{OverdueDays: 30}

// StateFromOverdue derives the automatic (non-locked) state for a given
// balance age.
func (p Policy) StateFromOverdue(daysOverdue int) domain.BillingState {
	switch {
	case daysOverdue <= 0:
		return domain.BillingActive
	case daysOverdue < p.OverdueDays:
		return domain.BillingWarning
	default:
		return domain.BillingOverdue
	}
}

// Reduce replays an account's history to its current state. Accounts with no
// manual events sit wherever the automatic progression puts them.
func Reduce(p Policy, daysOverdue int, history []domain.LockoutEvent) domain.BillingState {
	if len(history) == 0 {
		return p.StateFromOverdue(daysOverdue)
	}
	last := history[len(history)-1]
	if last.Action == domain.ActionLocked {
		return domain.BillingLocked
	}
	// Last event is an unlock. The account stays paid for the remainder of
	// the cycle; a fresh billing period (balance reset) reactivates it.
	if daysOverdue <= 0 {
		return domain.BillingActive
	}
	return domain.BillingPaid
}

// Lock applies a manual lock to a copy of the account. The caller must supply
// the exact confirmation token; any mismatch is rejected with no state change
// and no history entry. Locking an already-locked account is a no-op error so
// a retried request cannot duplicate history.
func Lock(acct domain.LockoutAccount, token, reason, notes, actorID string, now time.Time) (domain.LockoutAccount, error) {
	if token != ConfirmationToken {
		return acct, &domain.LockError{Kind: domain.LockBadToken, AccountID: acct.AccountID}
	}
	if acct.State == domain.BillingLocked {
		return acct, &domain.LockError{Kind: domain.LockAlreadyLocked, AccountID: acct.AccountID}
	}
	ev := domain.LockoutEvent{
		ID:        uuid.NewString(),
		Timestamp: now.UTC(),
		Action:    domain.ActionLocked,
		ActorID:   actorID,
		Reason:    reason,
		Notes:     notes,
	}
	acct.History = appendEvent(acct.History, ev)
	acct.State = domain.BillingLocked
	acct.Version++
	return acct, nil
}

// Unlock releases a locked account. The account moves to paid immediately,
// with no waiting period; only locked accounts can be unlocked.
func Unlock(acct domain.LockoutAccount, notes, actorID string, now time.Time) (domain.LockoutAccount, error) {
	if acct.State != domain.BillingLocked {
		return acct, &domain.LockError{Kind: domain.LockNotLocked, AccountID: acct.AccountID}
	}
	ev := domain.LockoutEvent{
		ID:        uuid.NewString(),
		Timestamp: now.UTC(),
		Action:    domain.ActionUnlocked,
		ActorID:   actorID,
		Notes:     notes,
	}
	acct.History = appendEvent(acct.History, ev)
	acct.State = domain.BillingPaid
	acct.Version++
	return acct, nil
}

// SyncOverdue applies a billing import to a copy of the account. Automatic
// progression only: a locked account stays locked no matter what the balance
// does, and no history entry is written for system-driven movement.
func SyncOverdue(p Policy, acct domain.LockoutAccount, daysOverdue int) domain.LockoutAccount {
	acct.DaysOverdue = daysOverdue
	if acct.State == domain.BillingLocked {
		return acct
	}
	acct.State = Reduce(p, daysOverdue, acct.History)
	acct.Version++
	return acct
}

// appendEvent copies on append so callers holding the old slice never observe
// mutation, and monotonically bumps timestamps that would otherwise collide
// with the previous entry (history must stay strictly ordered).
func appendEvent(history []domain.LockoutEvent, ev domain.LockoutEvent) []domain.LockoutEvent {
	if n := len(history); n > 0 && !ev.Timestamp.After(history[n-1].Timestamp) {
		ev.Timestamp = history[n-1].Timestamp.Add(time.Millisecond)
	}
	out := make([]domain.LockoutEvent, len(history), len(history)+1)
	copy(out, history)
	return append(out, ev)
}
