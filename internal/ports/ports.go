package ports

import (
	"context"

	"attest/internal/domain"
)

// SnapshotProvider serves derived compliance snapshots for any entity tier.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, entityID string) (domain.ComplianceSnapshot, error)
}

// Accounts drives the billing lockout lifecycle.
type Accounts interface {
	Get(ctx context.Context, accountID string) (domain.LockoutAccount, error)
	Lock(ctx context.Context, accountID, token, reason, notes, actorID string) (domain.LockoutAccount, error)
	Unlock(ctx context.Context, accountID, notes, actorID string) (domain.LockoutAccount, error)
	SyncOverdue(ctx context.Context, accountID string, daysOverdue int) (domain.LockoutAccount, error)
}
