package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attest/internal/adapters/memory"
	"attest/internal/domain"
	"attest/internal/metrics"
	"attest/internal/policy"
)

var today = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func testPolicies(t *testing.T) policy.Set {
	t.Helper()
	set, err := policy.FromMap(map[string]policy.ThresholdPolicy{
		"training": {AmberDays: 30, RedDays: 7},
		"medical":  {AmberDays: 45, RedDays: 7},
	})
	require.NoError(t, err)
	return set
}

func strPtr(s string) *string { return &s }

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// seedTree builds a portfolio with two companies: co-1 has two employees
// (one clean, one with an expired cert), co-2 has one clean employee.
func seedTree(store *memory.Store) {
	store.AddEntity(domain.Entity{ID: "port-1", Name: "Portfolio", Kind: domain.KindPortfolio})
	store.AddEntity(domain.Entity{ID: "co-1", Name: "Acme Trucking", Kind: domain.KindServiceCompany, ParentID: strPtr("port-1")})
	store.AddEntity(domain.Entity{ID: "co-2", Name: "Beta Freight", Kind: domain.KindServiceCompany, ParentID: strPtr("port-1")})
	store.AddEntity(domain.Entity{ID: "emp-1", Name: "Driver One", Kind: domain.KindEmployee, ParentID: strPtr("co-1")})
	store.AddEntity(domain.Entity{ID: "emp-2", Name: "Driver Two", Kind: domain.KindEmployee, ParentID: strPtr("co-1")})
	store.AddEntity(domain.Entity{ID: "emp-3", Name: "Driver Three", Kind: domain.KindEmployee, ParentID: strPtr("co-2")})

	store.AddItem(domain.ComplianceItem{ID: "i1", OwnerEntityID: "emp-1", Category: "training", ExpirationDate: datePtr(2025, time.June, 1)})
	store.AddItem(domain.ComplianceItem{ID: "i2", OwnerEntityID: "emp-1", Category: "medical", ExpirationDate: datePtr(2025, time.July, 1)})
	store.AddItem(domain.ComplianceItem{ID: "i3", OwnerEntityID: "emp-2", Category: "training", ExpirationDate: datePtr(2024, time.December, 1)})
	store.AddItem(domain.ComplianceItem{ID: "i4", OwnerEntityID: "emp-2", Category: "medical", ExpirationDate: datePtr(2025, time.August, 1)})
	store.AddItem(domain.ComplianceItem{ID: "i5", OwnerEntityID: "emp-3", Category: "training", ExpirationDate: datePtr(2025, time.September, 1)})
}

func newService(t *testing.T, store *memory.Store, opts ...Option) *Service {
	t.Helper()
	opts = append(opts, WithClock(func() time.Time { return today }))
	return New(store, store, testPolicies(t), zap.NewNop(), metrics.NewNop(), opts...)
}

func TestSnapshotEmployee(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)
	svc := newService(t, store)

	snap, err := svc.Snapshot(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityCompliant, snap.Status)
	assert.Equal(t, 100, snap.Percentage)
	assert.Equal(t, 1, snap.Weight)
	assert.Equal(t, domain.StatusCurrent, snap.Breakdown["training"])
	assert.Equal(t, domain.StatusCurrent, snap.Breakdown["medical"])
}

func TestSnapshotEmployeeWithExpiredItem(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)
	svc := newService(t, store)

	snap, err := svc.Snapshot(context.Background(), "emp-2")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityNonCompliant, snap.Status)
	assert.Equal(t, 50, snap.Percentage)
	assert.Equal(t, domain.StatusExpired, snap.Breakdown["training"])
}

func TestSnapshotCompanyRollsUpEmployees(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)
	svc := newService(t, store)

	snap, err := svc.Snapshot(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityNonCompliant, snap.Status, "emp-2's expired cert must surface")
	assert.Equal(t, 75, snap.Percentage)
	assert.Equal(t, 2, snap.Weight)
}

func TestSnapshotPortfolio(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)
	svc := newService(t, store)

	snap, err := svc.Snapshot(context.Background(), "port-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityNonCompliant, snap.Status)
	assert.Equal(t, 3, snap.Weight)
	// co-1 at 75 (weight 2), co-2 at 100 (weight 1): (150+100)/3 = 83.
	assert.Equal(t, 83, snap.Percentage)
}

func TestSnapshotUnknownEntity(t *testing.T) {
	store := memory.NewStore()
	svc := newService(t, store)
	_, err := svc.Snapshot(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotEmployeeWithNoItems(t *testing.T) {
	store := memory.NewStore()
	store.AddEntity(domain.Entity{ID: "emp-empty", Name: "New Hire", Kind: domain.KindEmployee})
	svc := newService(t, store)

	snap, err := svc.Snapshot(context.Background(), "emp-empty")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityUnknown, snap.Status)
	assert.Equal(t, 0, snap.Percentage)
}

func TestSnapshotMissingExpirationCountsAgainst(t *testing.T) {
	store := memory.NewStore()
	store.AddEntity(domain.Entity{ID: "emp-1", Name: "Driver", Kind: domain.KindEmployee})
	store.AddItem(domain.ComplianceItem{ID: "i1", OwnerEntityID: "emp-1", Category: "training", ExpirationDate: datePtr(2025, time.June, 1)})
	store.AddItem(domain.ComplianceItem{ID: "i2", OwnerEntityID: "emp-1", Category: "medical"})
	svc := newService(t, store)

	snap, err := svc.Snapshot(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityNonCompliant, snap.Status)
	assert.Equal(t, 50, snap.Percentage, "unknown stays in the denominator")
	assert.Equal(t, domain.StatusUnknown, snap.Breakdown["medical"])
}

func TestSnapshotSupersededItemsExcluded(t *testing.T) {
	store := memory.NewStore()
	store.AddEntity(domain.Entity{ID: "emp-1", Name: "Driver", Kind: domain.KindEmployee})
	store.AddItem(domain.ComplianceItem{ID: "old", OwnerEntityID: "emp-1", Category: "training",
		ExpirationDate: datePtr(2024, time.June, 1), SupersededBy: strPtr("new")})
	store.AddItem(domain.ComplianceItem{ID: "new", OwnerEntityID: "emp-1", Category: "training",
		ExpirationDate: datePtr(2025, time.June, 1)})
	svc := newService(t, store)

	snap, err := svc.Snapshot(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityCompliant, snap.Status)
	assert.Equal(t, 100, snap.Percentage)
}

func TestSnapshotCriticalBand(t *testing.T) {
	store := memory.NewStore()
	store.AddEntity(domain.Entity{ID: "emp-1", Name: "Driver", Kind: domain.KindEmployee})
	// 5 days out with red_days=7: expiring and critical.
	store.AddItem(domain.ComplianceItem{ID: "i1", OwnerEntityID: "emp-1", Category: "training",
		ExpirationDate: datePtr(2025, time.January, 6)})
	svc := newService(t, store)

	snap, err := svc.Snapshot(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityAtRisk, snap.Status)
	assert.Equal(t, []domain.Category{"training"}, snap.Critical)
}

func TestEvaluateAll(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)
	svc := newService(t, store, WithWorkers(3), WithCache(store, time.Minute))

	var lastDone, lastTotal int
	total, err := svc.EvaluateAll(context.Background(), func(done, total int) {
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Equal(t, 6, lastDone)
	assert.Equal(t, 6, lastTotal)

	// Everything is now cached; a snapshot read must hit the cache.
	snap, ok, err := store.GetSnapshot(context.Background(), "port-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.EntityNonCompliant, snap.Status)
	assert.Equal(t, 83, snap.Percentage)
}

func TestEvaluateAllIdempotent(t *testing.T) {
	store := memory.NewStore()
	seedTree(store)
	svc := newService(t, store, WithCache(store, time.Minute))

	_, err := svc.EvaluateAll(context.Background(), nil)
	require.NoError(t, err)
	first, _, err := store.GetSnapshot(context.Background(), "co-1")
	require.NoError(t, err)

	_, err = svc.EvaluateAll(context.Background(), nil)
	require.NoError(t, err)
	second, _, err := store.GetSnapshot(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
