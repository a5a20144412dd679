package ports

import (
	"context"
	"time"

	"attest/internal/domain"
)

// Method names are unique across the repository ports so a single adapter
// (one DB handle) can satisfy all of them.

// EntityRepository reads the employee → service company → portfolio tree.
type EntityRepository interface {
	GetEntity(ctx context.Context, id string) (domain.Entity, error)
	Children(ctx context.Context, parentID string) ([]domain.Entity, error)
	ListByKind(ctx context.Context, kind domain.EntityKind) ([]domain.Entity, error)
}

// ItemRepository reads compliance items. Superseded items are excluded; they
// exist only for audit history.
type ItemRepository interface {
	ListActiveByOwner(ctx context.Context, ownerEntityID string) ([]domain.ComplianceItem, error)
}

// SnapshotCache stores derived snapshots. Snapshots are disposable; a miss
// just means recompute.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, entityID string) (domain.ComplianceSnapshot, bool, error)
	PutSnapshot(ctx context.Context, snap domain.ComplianceSnapshot, ttl time.Duration) error
}

// LockoutRepository stores accounts and their append-only event histories.
//
// Transition loads the account, applies fn under a per-account exclusive
// lock, and persists the result atomically (state plus any appended events).
// A writer that loses a concurrent race gets domain.ErrConflict; an error
// from fn aborts with nothing written.
type LockoutRepository interface {
	GetAccount(ctx context.Context, accountID string) (domain.LockoutAccount, error)
	CreateAccount(ctx context.Context, accountID string, daysOverdue int) (domain.LockoutAccount, error)
	Transition(ctx context.Context, accountID string, fn func(domain.LockoutAccount) (domain.LockoutAccount, error)) (domain.LockoutAccount, error)
}

// RunRepository manages evaluation-run records and worker claiming.
type RunRepository interface {
	CreateRun(ctx context.Context) (domain.EvaluationRun, error)
	GetRun(ctx context.Context, runID string) (domain.EvaluationRun, error)
	// ClaimNext hands the oldest queued run to exactly one worker.
	ClaimNext(ctx context.Context) (run domain.EvaluationRun, found bool, err error)
	UpdateProgress(ctx context.Context, runID string, progress float64) error
	MarkCompleted(ctx context.Context, runID string, entities int) error
	MarkFailed(ctx context.Context, runID string, reason string) error
}
