// Package memory is an in-process implementation of the repository ports.
// It backs tests and local development; the postgres adapter is the
// production store. Lockout transitions serialize on a per-account mutex so
// concurrent requests for the same account cannot interleave, while requests
// for different accounts never contend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"attest/internal/domain"
	"attest/internal/ports"
)

type Store struct {
	mu        sync.RWMutex
	entities  map[string]domain.Entity
	items     map[string][]domain.ComplianceItem
	accounts  map[string]*accountSlot
	runs      map[string]*domain.EvaluationRun
	runOrder  []string
	snapshots map[string]cachedSnap
}

type accountSlot struct {
	mu   sync.Mutex
	acct domain.LockoutAccount
}

type cachedSnap struct {
	snap      domain.ComplianceSnapshot
	expiresAt time.Time
}

func NewStore() *Store {
	return &Store{
		entities:  make(map[string]domain.Entity),
		items:     make(map[string][]domain.ComplianceItem),
		accounts:  make(map[string]*accountSlot),
		runs:      make(map[string]*domain.EvaluationRun),
		snapshots: make(map[string]cachedSnap),
	}
}

var (
	_ ports.EntityRepository  = (*Store)(nil)
	_ ports.ItemRepository    = (*Store)(nil)
	_ ports.LockoutRepository = (*Store)(nil)
	_ ports.RunRepository     = (*Store)(nil)
	_ ports.SnapshotCache     = (*Store)(nil)
)

// AddEntity seeds an entity node.
func (s *Store) AddEntity(e domain.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e
}

// AddItem seeds a compliance item.
func (s *Store) AddItem(item domain.ComplianceItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.OwnerEntityID] = append(s.items[item.OwnerEntityID], item)
}

// EntityRepository

func (s *Store) GetEntity(ctx context.Context, id string) (domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return domain.Entity{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *Store) Children(ctx context.Context, parentID string) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Entity
	for _, e := range s.entities {
		if e.ParentID != nil && *e.ParentID == parentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListByKind(ctx context.Context, kind domain.EntityKind) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Entity
	for _, e := range s.entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

// ItemRepository

func (s *Store) ListActiveByOwner(ctx context.Context, ownerEntityID string) ([]domain.ComplianceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ComplianceItem
	for _, item := range s.items[ownerEntityID] {
		if !item.Superseded() {
			out = append(out, item)
		}
	}
	return out, nil
}

// LockoutRepository

func (s *Store) GetAccount(ctx context.Context, accountID string) (domain.LockoutAccount, error) {
	s.mu.RLock()
	slot, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return domain.LockoutAccount{}, domain.ErrNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return cloneAccount(slot.acct), nil
}

func (s *Store) CreateAccount(ctx context.Context, accountID string, daysOverdue int) (domain.LockoutAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[accountID]; exists {
		return domain.LockoutAccount{}, domain.ErrConflict
	}
	acct := domain.LockoutAccount{
		AccountID:   accountID,
		State:       domain.BillingActive,
		DaysOverdue: daysOverdue,
	}
	s.accounts[accountID] = &accountSlot{acct: acct}
	return acct, nil
}

func (s *Store) Transition(ctx context.Context, accountID string, fn func(domain.LockoutAccount) (domain.LockoutAccount, error)) (domain.LockoutAccount, error) {
	s.mu.RLock()
	slot, ok := s.accounts[accountID]
	s.mu.RUnlock()
	if !ok {
		return domain.LockoutAccount{}, domain.ErrNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	next, err := fn(cloneAccount(slot.acct))
	if err != nil {
		return cloneAccount(slot.acct), err
	}
	slot.acct = next
	return cloneAccount(next), nil
}

// RunRepository

func (s *Store) CreateRun(ctx context.Context) (domain.EvaluationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := domain.EvaluationRun{ID: uuid.NewString(), Status: domain.RunQueued}
	s.runs[run.ID] = &run
	s.runOrder = append(s.runOrder, run.ID)
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (domain.EvaluationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return domain.EvaluationRun{}, domain.ErrNotFound
	}
	return *run, nil
}

func (s *Store) ClaimNext(ctx context.Context) (domain.EvaluationRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.runOrder {
		run := s.runs[id]
		if run.Status != domain.RunQueued {
			continue
		}
		now := time.Now().UTC()
		run.Status = domain.RunRunning
		run.StartedAt = &now
		return *run, true, nil
	}
	return domain.EvaluationRun{}, false, nil
}

func (s *Store) UpdateProgress(ctx context.Context, runID string, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return domain.ErrNotFound
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	run.Progress = progress
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, runID string, entities int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = domain.RunCompleted
	run.Progress = 1
	run.Entities = entities
	run.FinishedAt = &now
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, runID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = domain.RunFailed
	run.Error = reason
	run.FinishedAt = &now
	return nil
}

// SnapshotCache

func (s *Store) GetSnapshot(ctx context.Context, entityID string) (domain.ComplianceSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.snapshots[entityID]
	if !ok || (!c.expiresAt.IsZero() && time.Now().After(c.expiresAt)) {
		return domain.ComplianceSnapshot{}, false, nil
	}
	return c.snap, true, nil
}

func (s *Store) PutSnapshot(ctx context.Context, snap domain.ComplianceSnapshot, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cachedSnap{snap: snap}
	if ttl > 0 {
		c.expiresAt = time.Now().Add(ttl)
	}
	s.snapshots[snap.EntityID] = c
	return nil
}

func cloneAccount(a domain.LockoutAccount) domain.LockoutAccount {
	out := a
	out.History = make([]domain.LockoutEvent, len(a.History))
	copy(out.History, a.History)
	return out
}
