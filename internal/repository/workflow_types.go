package repository

import "time"

// ── Domain types for workflow escalation ─────────────────────────────────────

// Instance lifecycle statuses. Once a status is terminal the instance is
// never mutated again.
const (
	InstanceStatusPending   = "pending"
	InstanceStatusApproved  = "approved"
	InstanceStatusCompleted = "completed"
	InstanceStatusRejected  = "rejected"
	InstanceStatusExpired   = "expired"
)

// SLA health statuses, derived from the step clock and thresholds.
const (
	SLAOnTrack  = "on_track"
	SLAWarning  = "warning"
	SLACritical = "critical"
	SLAOverdue  = "overdue"
	SLAExpired  = "expired"
)

// WorkflowInstance is one in-flight approval process (a leave request,
// compensation change, etc. awaiting decisions).
type WorkflowInstance struct {
	ID                    string
	TemplateID            string
	CompanyID             string
	ReferenceType         string // leave_request | compensation_change | ...
	ReferenceID           string
	Status                string // pending | approved | completed | rejected | expired
	CurrentStepID         *string
	CurrentStepOrder      int
	CurrentStepStartedAt  *time.Time
	CurrentStepDeadlineAt *time.Time
	SLAStatus             string
	EscalatedAt           *time.Time
	CompletedAt           *time.Time
	FinalAction           *string
	InitiatedBy           string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// WorkflowStep is one step's timing and escalation policy, keyed by
// (template_id, step_order). Read-only from this service's perspective.
type WorkflowStep struct {
	ID                  string
	TemplateID          string
	StepOrder           int
	Name                string
	ApproverRole        string
	EscalationHours     *int    // inactivity hours before escalation fires
	ExpirationDays      *int    // days before the whole instance force-expires
	SLAWarningHours     *int    // hours-until-deadline warning threshold
	SLACriticalHours    *int    // hours-until-deadline critical threshold
	EscalationAction    string  // notify | auto_approve | auto_reject | delegate
	AlternateApproverID *string // delegation target; required for delegate
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// StepRecord tracks one instance's passage through one step. The open
// record for a step is the one with no completed_at.
type StepRecord struct {
	ID          string
	InstanceID  string
	StepOrder   int
	StartedAt   time.Time
	CompletedAt *time.Time
	ExpiredAt   *time.Time
	SLAStatus   string
	WasOverdue  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkflowAuditEntry is one immutable record in the workflow audit log.
// DedupeKey makes system-generated entries idempotent under retried passes.
type WorkflowAuditEntry struct {
	ID               string
	InstanceID       string
	StepID           *string
	CompanyID        string
	Action           string // approved | rejected | delegated | expired
	Comment          string
	DelegatedTo      *string
	DelegationReason *string
	PerformedBy      string // "system" for escalation-generated entries
	PerformedAt      time.Time
	DedupeKey        *string
}

// Notification is one row in the in-app notification inbox.
type Notification struct {
	ID            string
	UserID        string
	Title         string
	Message       string
	Type          string // sla_warning | step_overdue | workflow_expired | delegation
	Priority      string // normal | high
	ReferenceType string
	ReferenceID   string
	CreatedAt     time.Time
}
