package domain

import "time"

// Core domain models used internally. Transport shapes live in the HTTP
// adapter; keep these decoupled where helpful.

// Status classifies a single compliance item relative to its expiration date.
type Status string

const (
	StatusCurrent  Status = "current"
	StatusExpiring Status = "expiring"
	StatusExpired  Status = "expired"
	StatusUnknown  Status = "unknown"
)

// severity ranks statuses for aggregation. Unknown ranks alongside Expired:
// a missing expiration date is non-compliance, not an excuse.
func (s Status) severity() int {
	switch s {
	case StatusCurrent:
		return 0
	case StatusExpiring:
		return 1
	}
	return 2
}

// MoreSevere reports whether s outranks other when folding item statuses.
func (s Status) MoreSevere(other Status) bool { return s.severity() > other.severity() }

// EntityStatus is the rolled-up standing of an employee, service company, or
// portfolio.
type EntityStatus string

const (
	EntityCompliant    EntityStatus = "compliant"
	EntityAtRisk       EntityStatus = "at-risk"
	EntityNonCompliant EntityStatus = "non-compliant"
	// EntityUnknown is reported for entities with no items at all; an empty
	// record set must not render as a clean dashboard.
	EntityUnknown EntityStatus = "unknown"
)

// Category names a compliance program area (training, medical, background,
// drug-testing, ...). Threshold windows are configured per category.
type Category string

// ComplianceItem is one filed record: a certificate, test result, medical
// exam, or invoice. Items are superseded on renewal, never deleted.
type ComplianceItem struct {
	ID             string
	OwnerEntityID  string
	Category       Category
	CompletionDate *time.Time
	ExpirationDate *time.Time
	SupersededBy   *string
}

// Superseded reports whether a newer item has replaced this one. Superseded
// items are kept for audit history and excluded from evaluation.
func (i ComplianceItem) Superseded() bool { return i.SupersededBy != nil }

// EntityKind distinguishes the three tiers of the hierarchy.
type EntityKind string

const (
	KindEmployee       EntityKind = "employee"
	KindServiceCompany EntityKind = "service_company"
	KindPortfolio      EntityKind = "portfolio"
)

// Entity is a node in the employee → service company → portfolio hierarchy.
// Non-leaf scores are always derived, never stored as ground truth.
type Entity struct {
	ID       string
	Name     string
	Kind     EntityKind
	ParentID *string
}

// ComplianceSnapshot is a derived, disposable view of one entity. Recomputing
// it from the same inputs yields an identical value.
type ComplianceSnapshot struct {
	EntityID   string              `json:"entity_id"`
	Status     EntityStatus        `json:"status"`
	Percentage int                 `json:"percentage"`
	Breakdown  map[Category]Status `json:"breakdown,omitempty"`
	// Critical lists categories sitting inside the red band; they still
	// classify as expiring, this is the four-bucket view for UIs.
	Critical []Category `json:"critical,omitempty"`
	// Weight is the employee headcount beneath this entity, used for
	// parent-level weighted averaging. An employee weighs 1.
	Weight      int       `json:"weight"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// BillingState is the lifecycle position of a billing account.
type BillingState string

const (
	BillingActive  BillingState = "active"
	BillingWarning BillingState = "warning"
	BillingOverdue BillingState = "overdue"
	BillingLocked  BillingState = "locked"
	// BillingPaid follows a manual unlock; the account returns to active on
	// the next billing period.
	BillingPaid BillingState = "paid"
)

// LockAction tags lockout audit events.
type LockAction string

const (
	ActionLocked   LockAction = "locked"
	ActionUnlocked LockAction = "unlocked"
)

// LockoutEvent is one immutable entry in an account's audit trail.
type LockoutEvent struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Action    LockAction `json:"action"`
	ActorID   string     `json:"actor_id"`
	Reason    string     `json:"reason,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// LockoutAccount carries current state plus the full append-only history.
// State is mutated only through validated transitions; Version guards
// concurrent writers.
type LockoutAccount struct {
	AccountID   string         `json:"account_id"`
	State       BillingState   `json:"state"`
	DaysOverdue int            `json:"days_overdue"`
	History     []LockoutEvent `json:"history"`
	Version     int            `json:"-"`
}

// SamplingMethod selects the audit sample-selection strategy.
type SamplingMethod string

const (
	SampleSimpleRandom SamplingMethod = "simple_random"
	SampleSystematic   SamplingMethod = "systematic"
	SampleStratified   SamplingMethod = "stratified"
)

// RunStatus tracks batch evaluation jobs.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// EvaluationRun records one batch evaluation of the portfolio tree.
type EvaluationRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Progress   float64    `json:"progress"`
	Entities   int        `json:"entities"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}
