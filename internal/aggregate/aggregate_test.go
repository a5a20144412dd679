package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"attest/internal/domain"
)

func statuses(current, expiring, expired, unknown int) []domain.Status {
	var out []domain.Status
	for i := 0; i < current; i++ {
		out = append(out, domain.StatusCurrent)
	}
	for i := 0; i < expiring; i++ {
		out = append(out, domain.StatusExpiring)
	}
	for i := 0; i < expired; i++ {
		out = append(out, domain.StatusExpired)
	}
	for i := 0; i < unknown; i++ {
		out = append(out, domain.StatusUnknown)
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name       string
		in         []domain.Status
		wantStatus domain.EntityStatus
		wantPct    int
	}{
		{"all current", statuses(10, 0, 0, 0), domain.EntityCompliant, 100},
		{"mixed with expired", statuses(8, 1, 1, 0), domain.EntityNonCompliant, 80},
		{"expiring only", statuses(3, 1, 0, 0), domain.EntityAtRisk, 75},
		{"unknown forces non-compliant", statuses(9, 0, 0, 1), domain.EntityNonCompliant, 90},
		{"single expired", statuses(0, 0, 1, 0), domain.EntityNonCompliant, 0},
		{"rounds to nearest", statuses(1, 2, 0, 0), domain.EntityAtRisk, 33},
		{"rounds up", statuses(2, 1, 0, 0), domain.EntityAtRisk, 67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, pct := Aggregate(tt.in)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantPct, pct)
		})
	}
}

func TestAggregateEmptyIsUnknown(t *testing.T) {
	status, pct := Aggregate(nil)
	assert.Equal(t, domain.EntityUnknown, status)
	assert.Equal(t, 0, pct)
}

func TestAggregatePercentageInRange(t *testing.T) {
	for current := 0; current <= 7; current++ {
		for expired := 0; expired <= 7; expired++ {
			if current+expired == 0 {
				continue
			}
			_, pct := Aggregate(statuses(current, 0, expired, 0))
			assert.GreaterOrEqual(t, pct, 0)
			assert.LessOrEqual(t, pct, 100)
		}
	}
}

// An expired or unknown item always surfaces, no matter how many current
// items surround it.
func TestAggregateSeverityWins(t *testing.T) {
	status, _ := Aggregate(statuses(500, 0, 1, 0))
	assert.Equal(t, domain.EntityNonCompliant, status)

	status, _ = Aggregate(statuses(500, 0, 0, 1))
	assert.Equal(t, domain.EntityNonCompliant, status)
}

func snap(id string, status domain.EntityStatus, pct, weight int) domain.ComplianceSnapshot {
	return domain.ComplianceSnapshot{EntityID: id, Status: status, Percentage: pct, Weight: weight}
}

func TestRollupWeightedAverage(t *testing.T) {
	at := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	// Big company at 50%, small compliant one at 100%: the weighted average
	// must sit near the big company, not the midpoint.
	children := []domain.ComplianceSnapshot{
		snap("co-big", domain.EntityNonCompliant, 50, 90),
		snap("co-small", domain.EntityCompliant, 100, 10),
	}
	got := Rollup("portfolio-1", children, []int{90, 10}, at)

	assert.Equal(t, "portfolio-1", got.EntityID)
	assert.Equal(t, 55, got.Percentage)
	assert.Equal(t, domain.EntityNonCompliant, got.Status)
	assert.Equal(t, 100, got.Weight)
	assert.Equal(t, at, got.EvaluatedAt)
}

// A severely non-compliant child surfaces at the parent regardless of size.
func TestRollupSmallChildStillSurfaces(t *testing.T) {
	at := time.Now().UTC()
	children := []domain.ComplianceSnapshot{
		snap("co-1", domain.EntityCompliant, 100, 999),
		snap("co-2", domain.EntityNonCompliant, 0, 1),
	}
	got := Rollup("p", children, []int{999, 1}, at)
	assert.Equal(t, domain.EntityNonCompliant, got.Status)
	assert.Equal(t, 100, got.Percentage, "weighted percentage still rounds to 100")
}

func TestRollupAtRisk(t *testing.T) {
	children := []domain.ComplianceSnapshot{
		snap("co-1", domain.EntityCompliant, 100, 5),
		snap("co-2", domain.EntityAtRisk, 80, 5),
	}
	got := Rollup("p", children, []int{5, 5}, time.Now())
	assert.Equal(t, domain.EntityAtRisk, got.Status)
	assert.Equal(t, 90, got.Percentage)
}

func TestRollupNoChildren(t *testing.T) {
	got := Rollup("p", nil, nil, time.Now())
	assert.Equal(t, domain.EntityUnknown, got.Status)
	assert.Equal(t, 0, got.Percentage)
}

func TestRollupUnknownChildIsNonCompliant(t *testing.T) {
	children := []domain.ComplianceSnapshot{
		snap("co-1", domain.EntityCompliant, 100, 5),
		snap("co-2", domain.EntityUnknown, 0, 1),
	}
	got := Rollup("p", children, []int{5, 1}, time.Now())
	assert.Equal(t, domain.EntityNonCompliant, got.Status)
}

func TestRollupIdempotent(t *testing.T) {
	at := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	children := []domain.ComplianceSnapshot{
		snap("a", domain.EntityAtRisk, 73, 11),
		snap("b", domain.EntityCompliant, 100, 3),
	}
	first := Rollup("p", children, []int{11, 3}, at)
	second := Rollup("p", children, []int{11, 3}, at)
	assert.Equal(t, first, second)
}
