// Package classify turns a compliance item into a status given a threshold
// policy and an explicit evaluation date. Everything here is a pure function:
// no clock reads, no I/O, so tests can pin time.
package classify

import (
	"time"

	"attest/internal/domain"
	"attest/internal/policy"
)

// DaysRemaining is the whole-day difference between the item's expiration
// date and today. Negative once expired. Calendar days, not 24h periods:
// both dates are truncated to midnight UTC first so an item expiring later
// today still counts as zero days remaining.
func DaysRemaining(today time.Time, expiration time.Time) int {
	t := truncate(today)
	e := truncate(expiration)
	return int(e.Sub(t) / (24 * time.Hour))
}

func truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Classify maps an item onto the status bands:
//
//	daysRemaining < 0            → expired
//	daysRemaining <= amber_days  → expiring (<= red_days is the critical band)
//	otherwise                    → current
//
// Band edges are inclusive on the lower side: exactly amber_days out is
// expiring, not current. A missing expiration date is unknown, which
// aggregation treats as non-compliant; it is never dropped from the
// denominator.
func Classify(today time.Time, pol policy.ThresholdPolicy, item domain.ComplianceItem) domain.Status {
	if item.ExpirationDate == nil {
		return domain.StatusUnknown
	}
	remaining := DaysRemaining(today, *item.ExpirationDate)
	switch {
	case remaining < 0:
		return domain.StatusExpired
	case remaining <= pol.AmberDays:
		return domain.StatusExpiring
	default:
		return domain.StatusCurrent
	}
}

// Critical reports whether an expiring item sits inside the red band.
// Callers needing only three buckets ignore this; four-bucket UIs use it to
// split "expiring" from "expiring soon".
func Critical(today time.Time, pol policy.ThresholdPolicy, item domain.ComplianceItem) bool {
	if item.ExpirationDate == nil {
		return false
	}
	remaining := DaysRemaining(today, *item.ExpirationDate)
	return remaining >= 0 && remaining <= pol.RedDays
}
