package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lumenhr/be-hr-workflows/internal/database"
	"github.com/lumenhr/be-hr-workflows/internal/errors"
)

// WorkflowInstanceRepository reads and mutates workflow instances.
//
// Every escalating or terminal mutation is a compare-and-swap guarded on
// status = 'pending' (and current_step_order where the step matters), so a
// concurrent invocation losing the race performs a harmless no-op instead
// of a double-escalate or double-expire.
type WorkflowInstanceRepository struct {
	db *database.DB
}

// NewWorkflowInstanceRepository creates a new WorkflowInstanceRepository.
func NewWorkflowInstanceRepository(db *database.DB) *WorkflowInstanceRepository {
	return &WorkflowInstanceRepository{db: db}
}

const instanceColumns = `
	id, template_id, company_id, reference_type, reference_id, status,
	current_step_id, current_step_order,
	current_step_started_at, current_step_deadline_at,
	sla_status, escalated_at, completed_at, final_action,
	initiated_by, created_at, updated_at`

// ListPending returns every instance still awaiting a decision, oldest first.
func (r *WorkflowInstanceRepository) ListPending(ctx context.Context) ([]*WorkflowInstance, error) {
	query := `
		SELECT` + instanceColumns + `
		FROM workflow_instances
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list pending workflow instances")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// GetByID retrieves an instance by its primary key.
func (r *WorkflowInstanceRepository) GetByID(ctx context.Context, id string) (*WorkflowInstance, error) {
	query := `
		SELECT` + instanceColumns + `
		FROM workflow_instances
		WHERE id = $1
	`

	inst, err := r.scanInstance(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow_instance", id)
	}
	return inst, err
}

// StartStepClock initializes the current step's clock and deadline. Fires
// only when the clock has not been started yet; returns false when another
// invocation already started it.
func (r *WorkflowInstanceRepository) StartStepClock(ctx context.Context, id string, startedAt time.Time, deadline *time.Time) (bool, error) {
	query := `
		UPDATE workflow_instances
		SET current_step_started_at  = $2,
		    current_step_deadline_at = $3,
		    updated_at               = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND current_step_started_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, id, startedAt, deadline)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to start step clock")
	}
	return tag.RowsAffected() > 0, nil
}

// SetStepDeadline backfills a missing deadline for a running step. Used on
// the pass after an automatic advance, when the new step's expiration
// window is first applied.
func (r *WorkflowInstanceRepository) SetStepDeadline(ctx context.Context, id string, stepOrder int, deadline time.Time) (bool, error) {
	query := `
		UPDATE workflow_instances
		SET current_step_deadline_at = $3,
		    updated_at               = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND current_step_order = $2
		  AND current_step_deadline_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, id, stepOrder, deadline)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to set step deadline")
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateSLAStatus persists a recomputed SLA status. The stored value only
// drives notification de-duplication; it is never read back for decisions.
func (r *WorkflowInstanceRepository) UpdateSLAStatus(ctx context.Context, id, slaStatus string) error {
	query := `
		UPDATE workflow_instances
		SET sla_status = $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
	`

	_, err := r.db.Exec(ctx, query, id, slaStatus)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update sla status")
	}
	return nil
}

// MarkOverdue records a notify-escalation: the step stays where it is, the
// instance is flagged overdue.
func (r *WorkflowInstanceRepository) MarkOverdue(ctx context.Context, id string, stepOrder int, now time.Time) (bool, error) {
	query := `
		UPDATE workflow_instances
		SET escalated_at = $3,
		    sla_status   = 'overdue',
		    updated_at   = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND current_step_order = $2
	`

	tag, err := r.db.Exec(ctx, query, id, stepOrder, now)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to mark instance overdue")
	}
	return tag.RowsAffected() > 0, nil
}

// AdvanceStep moves the instance to the next step after an auto-approve
// escalation. The new step's deadline is cleared; it is derived from the
// step's own expiration window on a later pass.
func (r *WorkflowInstanceRepository) AdvanceStep(ctx context.Context, id string, fromOrder int, now time.Time) (bool, error) {
	query := `
		UPDATE workflow_instances
		SET current_step_order       = current_step_order + 1,
		    current_step_id          = (
		        SELECT s.id FROM workflow_steps s
		        WHERE s.template_id = workflow_instances.template_id
		          AND s.step_order  = workflow_instances.current_step_order + 1
		    ),
		    current_step_started_at  = $3,
		    current_step_deadline_at = NULL,
		    escalated_at             = $3,
		    sla_status               = 'on_track',
		    updated_at               = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND current_step_order = $2
	`

	tag, err := r.db.Exec(ctx, query, id, fromOrder, now)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to advance workflow step")
	}
	return tag.RowsAffected() > 0, nil
}

// RestartStep resets the current step's clock after a delegation, giving
// the alternate approver a fresh escalation window.
func (r *WorkflowInstanceRepository) RestartStep(ctx context.Context, id string, stepOrder int, now time.Time) (bool, error) {
	query := `
		UPDATE workflow_instances
		SET current_step_started_at = $3,
		    escalated_at            = $3,
		    sla_status              = 'on_track',
		    updated_at              = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND current_step_order = $2
	`

	tag, err := r.db.Exec(ctx, query, id, stepOrder, now)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to restart workflow step")
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRejected terminates the instance after an auto-reject escalation.
func (r *WorkflowInstanceRepository) MarkRejected(ctx context.Context, id string, stepOrder int, now time.Time) (bool, error) {
	query := `
		UPDATE workflow_instances
		SET status       = 'rejected',
		    final_action = 'rejected',
		    escalated_at = $3,
		    completed_at = $3,
		    updated_at   = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND current_step_order = $2
	`

	tag, err := r.db.Exec(ctx, query, id, stepOrder, now)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to mark instance rejected")
	}
	return tag.RowsAffected() > 0, nil
}

// MarkExpired terminates the instance after its step deadline passed.
func (r *WorkflowInstanceRepository) MarkExpired(ctx context.Context, id string, stepOrder int, now time.Time) (bool, error) {
	query := `
		UPDATE workflow_instances
		SET status       = 'expired',
		    sla_status   = 'expired',
		    final_action = 'expired',
		    completed_at = $3,
		    updated_at   = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND current_step_order = $2
	`

	tag, err := r.db.Exec(ctx, query, id, stepOrder, now)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to mark instance expired")
	}
	return tag.RowsAffected() > 0, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type instanceScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowInstanceRepository) scanInstance(row instanceScanner) (*WorkflowInstance, error) {
	inst := &WorkflowInstance{}
	err := row.Scan(
		&inst.ID,
		&inst.TemplateID,
		&inst.CompanyID,
		&inst.ReferenceType,
		&inst.ReferenceID,
		&inst.Status,
		&inst.CurrentStepID,
		&inst.CurrentStepOrder,
		&inst.CurrentStepStartedAt,
		&inst.CurrentStepDeadlineAt,
		&inst.SLAStatus,
		&inst.EscalatedAt,
		&inst.CompletedAt,
		&inst.FinalAction,
		&inst.InitiatedBy,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (r *WorkflowInstanceRepository) scanRows(rows pgx.Rows) ([]*WorkflowInstance, error) {
	var instances []*WorkflowInstance
	for rows.Next() {
		inst, err := r.scanInstance(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow instance")
		}
		instances = append(instances, inst)
	}
	return instances, nil
}
