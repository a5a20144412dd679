// Package evaluator computes compliance snapshots: per-employee item
// classification, then bottom-up rollup through service companies to the
// portfolio. Classification and aggregation are pure; this service supplies
// the inputs (items, policies, clock) and fans the per-entity work out over a
// worker pool.
package evaluator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"attest/internal/aggregate"
	"attest/internal/classify"
	"attest/internal/domain"
	"attest/internal/metrics"
	"attest/internal/policy"
	"attest/internal/ports"
)

// Service evaluates entities against the configured threshold policies.
type Service struct {
	entities ports.EntityRepository
	items    ports.ItemRepository
	cache    ports.SnapshotCache // optional
	policies policy.Set
	log      *zap.Logger
	metrics  *metrics.Metrics

	workers  int
	cacheTTL time.Duration
	now      func() time.Time
}

// Option tweaks Service construction.
type Option func(*Service)

// WithCache attaches a snapshot cache with the given TTL.
func WithCache(cache ports.SnapshotCache, ttl time.Duration) Option {
	return func(s *Service) { s.cache = cache; s.cacheTTL = ttl }
}

// WithWorkers sets the evaluation pool size.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock pins the evaluation date, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(entities ports.EntityRepository, items ports.ItemRepository, policies policy.Set, log *zap.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		entities: entities,
		items:    items,
		policies: policies,
		log:      log,
		metrics:  m,
		workers:  4,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the snapshot for one entity, computing it on demand. The
// cache is consulted first; snapshots are derived values, so a miss means
// recompute, never an error.
func (s *Service) Snapshot(ctx context.Context, entityID string) (domain.ComplianceSnapshot, error) {
	if s.cache != nil {
		if snap, ok, err := s.cache.GetSnapshot(ctx, entityID); err != nil {
			s.log.Warn("snapshot cache read failed", zap.String("entity_id", entityID), zap.Error(err))
		} else if ok {
			return snap, nil
		}
	}

	entity, err := s.entities.GetEntity(ctx, entityID)
	if err != nil {
		return domain.ComplianceSnapshot{}, fmt.Errorf("entity %s: %w", entityID, err)
	}
	snap, err := s.evaluate(ctx, entity, s.now())
	if err != nil {
		return domain.ComplianceSnapshot{}, err
	}
	s.cachePut(ctx, snap)
	return snap, nil
}

// evaluate computes one entity's snapshot; non-leaf entities recurse into
// their children first.
func (s *Service) evaluate(ctx context.Context, entity domain.Entity, today time.Time) (domain.ComplianceSnapshot, error) {
	if entity.Kind == domain.KindEmployee {
		return s.evaluateEmployee(ctx, entity, today)
	}

	children, err := s.entities.Children(ctx, entity.ID)
	if err != nil {
		return domain.ComplianceSnapshot{}, fmt.Errorf("children of %s: %w", entity.ID, err)
	}
	snaps := make([]domain.ComplianceSnapshot, 0, len(children))
	weights := make([]int, 0, len(children))
	for _, child := range children {
		snap, err := s.evaluate(ctx, child, today)
		if err != nil {
			return domain.ComplianceSnapshot{}, err
		}
		snaps = append(snaps, snap)
		weights = append(weights, snap.Weight)
	}
	return aggregate.Rollup(entity.ID, snaps, weights, today), nil
}

// evaluateEmployee classifies the employee's active items and folds them into
// a leaf snapshot. An item whose category has no configured policy cannot be
// classified and counts as unknown; that is a configuration gap worth
// surfacing, not hiding.
func (s *Service) evaluateEmployee(ctx context.Context, entity domain.Entity, today time.Time) (domain.ComplianceSnapshot, error) {
	items, err := s.items.ListActiveByOwner(ctx, entity.ID)
	if err != nil {
		return domain.ComplianceSnapshot{}, fmt.Errorf("items of %s: %w", entity.ID, err)
	}

	statuses := make([]domain.Status, 0, len(items))
	breakdown := make(map[domain.Category]domain.Status, len(items))
	criticalSet := make(map[domain.Category]struct{})
	for _, item := range items {
		pol, ok := s.policies.Lookup(item.Category)
		status := domain.StatusUnknown
		if ok {
			status = classify.Classify(today, pol, item)
			if classify.Critical(today, pol, item) {
				criticalSet[item.Category] = struct{}{}
			}
		} else {
			s.log.Warn("no threshold policy for category",
				zap.String("category", string(item.Category)),
				zap.String("item_id", item.ID))
		}
		statuses = append(statuses, status)
		if prev, seen := breakdown[item.Category]; !seen || status.MoreSevere(prev) {
			breakdown[item.Category] = status
		}
	}

	entityStatus, pct := aggregate.Aggregate(statuses)
	snap := domain.ComplianceSnapshot{
		EntityID:    entity.ID,
		Status:      entityStatus,
		Percentage:  pct,
		Weight:      1,
		EvaluatedAt: today,
	}
	if len(breakdown) > 0 {
		snap.Breakdown = breakdown
	}
	if len(criticalSet) > 0 {
		snap.Critical = sortedCategories(criticalSet)
	}
	return snap, nil
}

// EvaluateAll refreshes every snapshot in the tree: employees fan out over
// the worker pool, companies and portfolios roll up from the fresh results.
// Progress is reported after each tier for run bookkeeping.
func (s *Service) EvaluateAll(ctx context.Context, progress func(done, total int)) (int, error) {
	today := s.now()
	start := time.Now()

	employees, err := s.entities.ListByKind(ctx, domain.KindEmployee)
	if err != nil {
		return 0, fmt.Errorf("list employees: %w", err)
	}
	companies, err := s.entities.ListByKind(ctx, domain.KindServiceCompany)
	if err != nil {
		return 0, fmt.Errorf("list companies: %w", err)
	}
	portfolios, err := s.entities.ListByKind(ctx, domain.KindPortfolio)
	if err != nil {
		return 0, fmt.Errorf("list portfolios: %w", err)
	}
	total := len(employees) + len(companies) + len(portfolios)
	if progress == nil {
		progress = func(int, int) {}
	}

	// Tier 1: employees, embarrassingly parallel.
	leafSnaps, err := s.evaluateEmployees(ctx, employees, today)
	if err != nil {
		return 0, err
	}
	done := len(employees)
	progress(done, total)

	// Tier 2: companies roll up their employees.
	companySnaps := make(map[string]domain.ComplianceSnapshot, len(companies))
	for _, c := range companies {
		snaps, weights := childSnaps(c.ID, employees, leafSnaps)
		snap := aggregate.Rollup(c.ID, snaps, weights, today)
		companySnaps[c.ID] = snap
		s.cachePut(ctx, snap)
	}
	done += len(companies)
	progress(done, total)

	// Tier 3: portfolios roll up their companies.
	for _, p := range portfolios {
		snaps, weights := childSnaps(p.ID, companies, companySnaps)
		snap := aggregate.Rollup(p.ID, snaps, weights, today)
		s.cachePut(ctx, snap)
	}
	done += len(portfolios)
	progress(done, total)

	if s.metrics != nil {
		s.metrics.EvalDuration.Observe(time.Since(start).Seconds())
		s.metrics.EntitiesEvaluated.Add(float64(total))
	}
	s.log.Info("evaluation completed",
		zap.Int("entities", total),
		zap.Duration("elapsed", time.Since(start)))
	return total, nil
}

// evaluateEmployees runs leaf evaluation over a channel-fed worker pool.
// Each employee depends only on its own items, so there is no shared state
// beyond the results map.
func (s *Service) evaluateEmployees(ctx context.Context, employees []domain.Entity, today time.Time) (map[string]domain.ComplianceSnapshot, error) {
	jobs := make(chan domain.Entity)
	results := make(map[string]domain.ComplianceSnapshot, len(employees))

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	workers := s.workers
	if workers > len(employees) && len(employees) > 0 {
		workers = len(employees)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entity := range jobs {
				snap, err := s.evaluateEmployee(ctx, entity, today)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
				} else {
					results[entity.ID] = snap
				}
				mu.Unlock()
			}
		}()
	}

	for _, e := range employees {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- e:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	for _, snap := range results {
		s.cachePut(ctx, snap)
	}
	return results, nil
}

func (s *Service) cachePut(ctx context.Context, snap domain.ComplianceSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutSnapshot(ctx, snap, s.cacheTTL); err != nil {
		s.log.Warn("snapshot cache write failed", zap.String("entity_id", snap.EntityID), zap.Error(err))
	}
}

// childSnaps pairs a parent's children with their computed snapshots and
// weights, skipping children that have no snapshot yet.
func childSnaps(parentID string, candidates []domain.Entity, computed map[string]domain.ComplianceSnapshot) ([]domain.ComplianceSnapshot, []int) {
	var snaps []domain.ComplianceSnapshot
	var weights []int
	for _, c := range candidates {
		if c.ParentID == nil || *c.ParentID != parentID {
			continue
		}
		if snap, ok := computed[c.ID]; ok {
			snaps = append(snaps, snap)
			weights = append(weights, snap.Weight)
		}
	}
	return snaps, weights
}

func sortedCategories(set map[domain.Category]struct{}) []domain.Category {
	out := make([]domain.Category, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
