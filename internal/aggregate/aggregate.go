// Package aggregate rolls item statuses up into entity standings and entity
// snapshots up into parent snapshots. Pure fold over explicit inputs; running
// it twice on the same inputs yields identical output.
package aggregate

import (
	"math"
	"time"

	"attest/internal/domain"
)

// Aggregate folds a set of item statuses into an entity standing.
//
// Percentage is 100 * current / total, rounded to nearest. An empty set is
// reported as unknown with zero percentage rather than a misleading 100 or 0.
// Severity wins: any expired or unknown item makes the entity non-compliant
// no matter how many current items sit alongside it.
func Aggregate(statuses []domain.Status) (domain.EntityStatus, int) {
	if len(statuses) == 0 {
		return domain.EntityUnknown, 0
	}
	var current int
	entity := domain.EntityCompliant
	for _, s := range statuses {
		switch s {
		case domain.StatusCurrent:
			current++
		case domain.StatusExpiring:
			if entity == domain.EntityCompliant {
				entity = domain.EntityAtRisk
			}
		case domain.StatusExpired, domain.StatusUnknown:
			entity = domain.EntityNonCompliant
		}
	}
	pct := int(math.Round(100 * float64(current) / float64(len(statuses))))
	return entity, pct
}

// Rollup derives a parent snapshot from its children.
//
// The percentage is the weight-averaged child percentage (weights are
// employee headcounts) so a large non-compliant company is not diluted by
// many small compliant ones. The status is the severity-priority fold over
// the child status set, not a function of the averaged percentage, so one
// severely non-compliant child surfaces at the top regardless of its size.
// Children with no data (unknown) make the parent non-compliant for the same
// reason unknown items do.
func Rollup(parentID string, children []domain.ComplianceSnapshot, weights []int, evaluatedAt time.Time) domain.ComplianceSnapshot {
	snap := domain.ComplianceSnapshot{
		EntityID:    parentID,
		Status:      domain.EntityUnknown,
		EvaluatedAt: evaluatedAt,
	}
	if len(children) == 0 {
		return snap
	}

	var weightedSum float64
	var totalWeight int
	status := domain.EntityCompliant
	for i, child := range children {
		w := 1
		if i < len(weights) && weights[i] > 0 {
			w = weights[i]
		}
		totalWeight += w
		weightedSum += float64(child.Percentage) * float64(w)

		switch child.Status {
		case domain.EntityNonCompliant, domain.EntityUnknown:
			status = domain.EntityNonCompliant
		case domain.EntityAtRisk:
			if status == domain.EntityCompliant {
				status = domain.EntityAtRisk
			}
		}
	}

	snap.Status = status
	snap.Percentage = int(math.Round(weightedSum / float64(totalWeight)))
	snap.Weight = totalWeight
	return snap
}
