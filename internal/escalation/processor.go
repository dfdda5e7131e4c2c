// Package escalation advances in-flight approval workflow instances under
// time pressure: SLA health computation, automatic escalation when a
// step's inactivity window is crossed, and hard expiration when its
// deadline passes.
package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumenhr/be-hr-workflows/internal/errors"
	"github.com/lumenhr/be-hr-workflows/internal/logger"
	"github.com/lumenhr/be-hr-workflows/internal/repository"
)

// systemActor is recorded as the performer of escalation-generated
// audit entries.
const systemActor = "system"

// InstanceStore reads and mutates workflow instances. Mutations that
// escalate or terminate must be compare-and-swap: they return false when
// the instance was no longer in the expected state.
type InstanceStore interface {
	ListPending(ctx context.Context) ([]*repository.WorkflowInstance, error)
	StartStepClock(ctx context.Context, id string, startedAt time.Time, deadline *time.Time) (bool, error)
	SetStepDeadline(ctx context.Context, id string, stepOrder int, deadline time.Time) (bool, error)
	UpdateSLAStatus(ctx context.Context, id, slaStatus string) error
	MarkOverdue(ctx context.Context, id string, stepOrder int, now time.Time) (bool, error)
	AdvanceStep(ctx context.Context, id string, fromOrder int, now time.Time) (bool, error)
	RestartStep(ctx context.Context, id string, stepOrder int, now time.Time) (bool, error)
	MarkRejected(ctx context.Context, id string, stepOrder int, now time.Time) (bool, error)
	MarkExpired(ctx context.Context, id string, stepOrder int, now time.Time) (bool, error)
}

// StepConfigStore resolves a step's timing and escalation policy.
type StepConfigStore interface {
	GetByTemplateAndOrder(ctx context.Context, templateID string, stepOrder int) (*repository.WorkflowStep, error)
}

// StepRecordStore closes per-step tracking records.
type StepRecordStore interface {
	MarkExpired(ctx context.Context, instanceID string, stepOrder int, now time.Time) error
}

// AuditStore appends immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.WorkflowAuditEntry) error
}

// Notifier delivers one notification.
type Notifier interface {
	Send(ctx context.Context, n *repository.Notification) error
}

// RunLocker makes passes single-flight across replicas.
type RunLocker interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Summary is the aggregate result of one escalation pass.
type Summary struct {
	StartedAt    time.Time `json:"started_at"`
	Skipped      bool      `json:"skipped,omitempty"` // another invocation held the run lock
	Processed    int       `json:"processed"`
	Escalated    int       `json:"escalated"`
	Expired      int       `json:"expired"`
	WarningsSent int       `json:"warnings_sent"`
	Errors       []string  `json:"errors"`
}

// Processor is the escalation engine. One Run examines every pending
// workflow instance independently: failures are isolated per instance and
// reported in the summary, never aborting the batch.
type Processor struct {
	instances InstanceStore
	steps     StepConfigStore
	records   StepRecordStore
	audits    AuditStore
	notifier  Notifier
	lock      RunLocker // nil disables cross-replica single-flight
	metrics   *Metrics
	workers   int
	log       *logger.Logger

	now func() time.Time

	mu   sync.Mutex
	last *Summary
}

// NewProcessor creates a new Processor. workers bounds how many instances
// are processed concurrently; lock and metrics may be nil.
func NewProcessor(
	instances InstanceStore,
	steps StepConfigStore,
	records StepRecordStore,
	audits AuditStore,
	notifier Notifier,
	lock RunLocker,
	metrics *Metrics,
	workers int,
	log *logger.Logger,
) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		instances: instances,
		steps:     steps,
		records:   records,
		audits:    audits,
		notifier:  notifier,
		lock:      lock,
		metrics:   metrics,
		workers:   workers,
		log:       log,
		now:       time.Now,
	}
}

// Run executes one escalation pass over all pending instances. The only
// fatal error is failing to load the instance list (or the run lock);
// everything else is recorded per instance in the summary.
func (p *Processor) Run(ctx context.Context) (*Summary, error) {
	return p.runAt(ctx, p.now().UTC())
}

// LastSummary returns the most recent pass summary, or nil before the
// first pass.
func (p *Processor) LastSummary() *Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Processor) runAt(ctx context.Context, now time.Time) (*Summary, error) {
	summary := &Summary{StartedAt: now, Errors: []string{}}

	if p.lock != nil {
		acquired, err := p.lock.TryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if !acquired {
			p.log.Info().Msg("Escalation pass skipped: another invocation holds the run lock")
			summary.Skipped = true
			p.setLast(summary)
			return summary, nil
		}
		defer func() {
			if err := p.lock.Release(context.WithoutCancel(ctx)); err != nil {
				p.log.Warn().Err(err).Msg("Failed to release escalation run lock")
			}
		}()
	}

	pending, err := p.instances.ListPending(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load pending workflow instances")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, inst := range pending {
		inst := inst
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := p.processInstance(gctx, now, inst)

			mu.Lock()
			summary.Processed++
			if res.escalated {
				summary.Escalated++
			}
			if res.expired {
				summary.Expired++
			}
			if res.warningSent {
				summary.WarningsSent++
			}
			summary.Errors = append(summary.Errors, res.errs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	elapsed := p.now().UTC().Sub(now)
	p.metrics.ObservePass(summary, elapsed)
	p.setLast(summary)

	p.log.Info().
		Int("processed", summary.Processed).
		Int("escalated", summary.Escalated).
		Int("expired", summary.Expired).
		Int("warnings_sent", summary.WarningsSent).
		Int("errors", len(summary.Errors)).
		Dur("duration", elapsed).
		Msg("Escalation pass complete")

	return summary, nil
}

func (p *Processor) setLast(s *Summary) {
	p.mu.Lock()
	p.last = s
	p.mu.Unlock()
}

// ── per-instance processing ───────────────────────────────────────────────────

type result struct {
	escalated   bool
	expired     bool
	warningSent bool
	errs        []string
}

func (r *result) addError(instanceID string, err error) {
	r.errs = append(r.errs, fmt.Sprintf("instance %s: %v", instanceID, err))
}

// processInstance applies the per-pass decision order to one instance:
// clock initialization, then expiration, then escalation, then SLA
// recompute. The first matching rule wins.
func (p *Processor) processInstance(ctx context.Context, now time.Time, inst *repository.WorkflowInstance) result {
	var res result

	step, err := p.steps.GetByTemplateAndOrder(ctx, inst.TemplateID, inst.CurrentStepOrder)
	if err != nil {
		res.addError(inst.ID, fmt.Errorf("no step config for template %s step %d: %w",
			inst.TemplateID, inst.CurrentStepOrder, err))
		return res
	}

	// Step-start initialization: the clock starts when the processor first
	// observes the step, not at instance creation. No other action on the
	// same pass.
	if inst.CurrentStepStartedAt == nil {
		var deadline *time.Time
		if step.ExpirationDays != nil {
			d := now.Add(time.Duration(*step.ExpirationDays) * 24 * time.Hour)
			deadline = &d
		}
		if _, err := p.instances.StartStepClock(ctx, inst.ID, now, deadline); err != nil {
			res.addError(inst.ID, err)
		}
		return res
	}

	// A step entered through an automatic advance has no deadline yet;
	// derive it from the step's own expiration window before any timing
	// rule can fire against a stale value.
	if inst.CurrentStepDeadlineAt == nil && step.ExpirationDays != nil {
		deadline := inst.CurrentStepStartedAt.Add(time.Duration(*step.ExpirationDays) * 24 * time.Hour)
		if _, err := p.instances.SetStepDeadline(ctx, inst.ID, inst.CurrentStepOrder, deadline); err != nil {
			res.addError(inst.ID, err)
		}
		return res
	}

	// Rule 1: hard expiration.
	if inst.CurrentStepDeadlineAt != nil && now.After(*inst.CurrentStepDeadlineAt) {
		p.expire(ctx, now, inst, step, &res)
		return res
	}

	// Rule 2: escalation on inactivity.
	hoursElapsed := now.Sub(*inst.CurrentStepStartedAt).Hours()
	if step.EscalationHours != nil && hoursElapsed >= float64(*step.EscalationHours) {
		p.escalate(ctx, now, inst, step, hoursElapsed, &res)
		return res
	}

	// Rule 3: SLA recompute. Persist and notify only on a status change,
	// so repeated passes with unchanged inputs send nothing.
	slaStatus := ComputeSLAStatus(now, inst.CurrentStepStartedAt, inst.CurrentStepDeadlineAt, step)
	if slaStatus == inst.SLAStatus {
		return res
	}
	if err := p.instances.UpdateSLAStatus(ctx, inst.ID, slaStatus); err != nil {
		res.addError(inst.ID, err)
		return res
	}
	if slaStatus == repository.SLAWarning || slaStatus == repository.SLACritical {
		if err := p.notifier.Send(ctx, &repository.Notification{
			UserID:        inst.InitiatedBy,
			Title:         "Approval running late",
			Message:       fmt.Sprintf("Your %s approval is %s on step %d (%s).", inst.ReferenceType, slaStatus, inst.CurrentStepOrder, step.Name),
			Type:          "sla_warning",
			Priority:      "normal",
			ReferenceType: inst.ReferenceType,
			ReferenceID:   inst.ReferenceID,
		}); err != nil {
			res.addError(inst.ID, err)
			return res
		}
		res.warningSent = true
	}
	return res
}

// expire terminates an instance whose step deadline passed. All four
// effects (instance mutation, audit entry, step record, notification) are
// attempted even when an earlier one fails; each failure is recorded.
func (p *Processor) expire(ctx context.Context, now time.Time, inst *repository.WorkflowInstance, step *repository.WorkflowStep, res *result) {
	won, err := p.instances.MarkExpired(ctx, inst.ID, inst.CurrentStepOrder, now)
	if err != nil {
		res.addError(inst.ID, err)
	}
	if err == nil && !won {
		// Lost the race: another invocation already terminated it.
		return
	}

	expirationDays := 0
	if step.ExpirationDays != nil {
		expirationDays = *step.ExpirationDays
	}

	if err := p.audits.Append(ctx, p.systemAudit(inst, step, "expired",
		fmt.Sprintf("Workflow expired: step %d (%s) exceeded its %d-day expiration window.",
			inst.CurrentStepOrder, step.Name, expirationDays), now)); err != nil {
		res.addError(inst.ID, err)
	}

	if err := p.records.MarkExpired(ctx, inst.ID, inst.CurrentStepOrder, now); err != nil {
		res.addError(inst.ID, err)
	}

	if err := p.notifier.Send(ctx, &repository.Notification{
		UserID:        inst.InitiatedBy,
		Title:         "Approval workflow expired",
		Message:       fmt.Sprintf("Your %s approval expired after %d day(s) without a decision on step %d (%s).", inst.ReferenceType, expirationDays, inst.CurrentStepOrder, step.Name),
		Type:          "workflow_expired",
		Priority:      "high",
		ReferenceType: inst.ReferenceType,
		ReferenceID:   inst.ReferenceID,
	}); err != nil {
		res.addError(inst.ID, err)
	}

	res.expired = true
}

// escalate applies the step's configured escalation action.
func (p *Processor) escalate(ctx context.Context, now time.Time, inst *repository.WorkflowInstance, step *repository.WorkflowStep, hoursElapsed float64, res *result) {
	action, known := ParseAction(step.EscalationAction)
	if !known {
		p.log.Warn().
			Str("instance_id", inst.ID).
			Str("escalation_action", step.EscalationAction).
			Msg("Unrecognized escalation action; falling back to notify")
	}

	switch action {
	case ActionAutoApprove:
		p.autoApprove(ctx, now, inst, step, hoursElapsed, res)
	case ActionAutoReject:
		p.autoReject(ctx, now, inst, step, hoursElapsed, res)
	case ActionDelegate:
		p.delegate(ctx, now, inst, step, hoursElapsed, res)
	default:
		p.notifyOverdue(ctx, now, inst, step, res)
	}
}

// autoApprove advances the instance one step. The new step's deadline is
// derived on a later pass from its own expiration window.
func (p *Processor) autoApprove(ctx context.Context, now time.Time, inst *repository.WorkflowInstance, step *repository.WorkflowStep, hoursElapsed float64, res *result) {
	won, err := p.instances.AdvanceStep(ctx, inst.ID, inst.CurrentStepOrder, now)
	if err != nil {
		res.addError(inst.ID, err)
		return
	}
	if !won {
		return
	}

	if err := p.audits.Append(ctx, p.systemAudit(inst, step, "approved",
		fmt.Sprintf("Auto-approved after %.1f hours of inactivity (threshold %dh).",
			hoursElapsed, derefInt(step.EscalationHours)), now)); err != nil {
		res.addError(inst.ID, err)
	}

	res.escalated = true
}

// autoReject terminates the instance.
func (p *Processor) autoReject(ctx context.Context, now time.Time, inst *repository.WorkflowInstance, step *repository.WorkflowStep, hoursElapsed float64, res *result) {
	won, err := p.instances.MarkRejected(ctx, inst.ID, inst.CurrentStepOrder, now)
	if err != nil {
		res.addError(inst.ID, err)
		return
	}
	if !won {
		return
	}

	if err := p.audits.Append(ctx, p.systemAudit(inst, step, "rejected",
		fmt.Sprintf("Auto-rejected after %.1f hours of inactivity (threshold %dh).",
			hoursElapsed, derefInt(step.EscalationHours)), now)); err != nil {
		res.addError(inst.ID, err)
	}

	res.escalated = true
}

// delegate hands the pending decision to the step's alternate approver and
// restarts the step clock. A missing alternate is a configuration gap, not
// an error: the instance is left untouched.
func (p *Processor) delegate(ctx context.Context, now time.Time, inst *repository.WorkflowInstance, step *repository.WorkflowStep, hoursElapsed float64, res *result) {
	if step.AlternateApproverID == nil || *step.AlternateApproverID == "" {
		p.log.Warn().
			Str("instance_id", inst.ID).
			Str("template_id", inst.TemplateID).
			Int("step_order", inst.CurrentStepOrder).
			Msg("Delegate escalation configured without an alternate approver; skipping")
		return
	}

	won, err := p.instances.RestartStep(ctx, inst.ID, inst.CurrentStepOrder, now)
	if err != nil {
		res.addError(inst.ID, err)
		return
	}
	if !won {
		return
	}

	reason := fmt.Sprintf("Delegated after %.1f hours of inactivity (threshold %dh).",
		hoursElapsed, derefInt(step.EscalationHours))
	entry := p.systemAudit(inst, step, "delegated", reason, now)
	entry.DelegatedTo = step.AlternateApproverID
	entry.DelegationReason = &reason
	if err := p.audits.Append(ctx, entry); err != nil {
		res.addError(inst.ID, err)
	}

	if err := p.notifier.Send(ctx, &repository.Notification{
		UserID:        *step.AlternateApproverID,
		Title:         "Approval delegated to you",
		Message:       fmt.Sprintf("A %s approval on step %d (%s) was delegated to you after %.1f hours without a decision.", inst.ReferenceType, inst.CurrentStepOrder, step.Name, hoursElapsed),
		Type:          "delegation",
		Priority:      "high",
		ReferenceType: inst.ReferenceType,
		ReferenceID:   inst.ReferenceID,
	}); err != nil {
		res.addError(inst.ID, err)
	}

	res.escalated = true
}

// notifyOverdue flags the instance overdue and notifies the initiator. The
// step clock is deliberately not reset, so this branch re-fires every pass
// until the deadline rule takes over.
func (p *Processor) notifyOverdue(ctx context.Context, now time.Time, inst *repository.WorkflowInstance, step *repository.WorkflowStep, res *result) {
	won, err := p.instances.MarkOverdue(ctx, inst.ID, inst.CurrentStepOrder, now)
	if err != nil {
		res.addError(inst.ID, err)
		return
	}
	if !won {
		return
	}

	if err := p.notifier.Send(ctx, &repository.Notification{
		UserID:        inst.InitiatedBy,
		Title:         "Approval step overdue",
		Message:       fmt.Sprintf("Your %s approval has been waiting more than %d hour(s) on step %d (%s).", inst.ReferenceType, derefInt(step.EscalationHours), inst.CurrentStepOrder, step.Name),
		Type:          "step_overdue",
		Priority:      "high",
		ReferenceType: inst.ReferenceType,
		ReferenceID:   inst.ReferenceID,
	}); err != nil {
		res.addError(inst.ID, err)
	}

	res.escalated = true
}

// systemAudit builds an audit entry for an escalation-generated action.
// The dedupe key makes re-inserting the same action for the same step a
// no-op under retried passes.
func (p *Processor) systemAudit(inst *repository.WorkflowInstance, step *repository.WorkflowStep, action, comment string, now time.Time) *repository.WorkflowAuditEntry {
	dedupe := fmt.Sprintf("%s:%d:%s", inst.ID, inst.CurrentStepOrder, action)
	return &repository.WorkflowAuditEntry{
		InstanceID:  inst.ID,
		StepID:      &step.ID,
		CompanyID:   inst.CompanyID,
		Action:      action,
		Comment:     comment,
		PerformedBy: systemActor,
		PerformedAt: now,
		DedupeKey:   &dedupe,
	}
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
