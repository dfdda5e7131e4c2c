package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lumenhr/be-hr-workflows/internal/database"
	"github.com/lumenhr/be-hr-workflows/internal/errors"
)

// WorkflowStepRepository reads step policy configuration. Step definitions
// are owned by the workflow template editor; this service never writes them.
type WorkflowStepRepository struct {
	db *database.DB
}

// NewWorkflowStepRepository creates a new WorkflowStepRepository.
func NewWorkflowStepRepository(db *database.DB) *WorkflowStepRepository {
	return &WorkflowStepRepository{db: db}
}

const stepColumns = `
	id, template_id, step_order, name, approver_role,
	escalation_hours, expiration_days,
	sla_warning_hours, sla_critical_hours,
	escalation_action, alternate_approver_id,
	created_at, updated_at`

// GetByTemplateAndOrder returns the policy for one step of a template.
func (r *WorkflowStepRepository) GetByTemplateAndOrder(ctx context.Context, templateID string, stepOrder int) (*WorkflowStep, error) {
	query := `
		SELECT` + stepColumns + `
		FROM workflow_steps
		WHERE template_id = $1 AND step_order = $2
	`

	step, err := r.scanStep(r.db.QueryRow(ctx, query, templateID, stepOrder))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow_step", fmt.Sprintf("%s/%d", templateID, stepOrder))
	}
	return step, err
}

// GetByTemplateID returns all steps of a template ordered by step_order.
func (r *WorkflowStepRepository) GetByTemplateID(ctx context.Context, templateID string) ([]*WorkflowStep, error) {
	query := `
		SELECT` + stepColumns + `
		FROM workflow_steps
		WHERE template_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.Query(ctx, query, templateID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list workflow steps")
	}
	defer rows.Close()

	var steps []*WorkflowStep
	for rows.Next() {
		step, err := r.scanStep(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan workflow step")
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// ── scan helper ───────────────────────────────────────────────────────────────

type stepScanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowStepRepository) scanStep(row stepScanner) (*WorkflowStep, error) {
	s := &WorkflowStep{}
	err := row.Scan(
		&s.ID,
		&s.TemplateID,
		&s.StepOrder,
		&s.Name,
		&s.ApproverRole,
		&s.EscalationHours,
		&s.ExpirationDays,
		&s.SLAWarningHours,
		&s.SLACriticalHours,
		&s.EscalationAction,
		&s.AlternateApproverID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
