package repository

import (
	"context"

	"github.com/lumenhr/be-hr-workflows/internal/database"
	"github.com/lumenhr/be-hr-workflows/internal/errors"
)

// WorkflowAuditRepository appends and reads immutable workflow audit entries.
type WorkflowAuditRepository struct {
	db *database.DB
}

// NewWorkflowAuditRepository creates a new WorkflowAuditRepository.
func NewWorkflowAuditRepository(db *database.DB) *WorkflowAuditRepository {
	return &WorkflowAuditRepository{db: db}
}

// Append inserts one audit entry. Entries carrying a dedupe key are
// idempotent: a retried pass re-inserting the same terminal action is a
// no-op rather than a duplicate row.
func (r *WorkflowAuditRepository) Append(ctx context.Context, entry *WorkflowAuditEntry) error {
	query := `
		INSERT INTO workflow_audit_log
		    (instance_id, step_id, company_id,
		     action, comment,
		     delegated_to, delegation_reason,
		     performed_by, performed_at, dedupe_key)
		VALUES ($1, $2, $3,
		        $4, $5,
		        $6, $7,
		        $8, $9, $10)
		ON CONFLICT (dedupe_key) DO NOTHING
	`

	_, err := r.db.Exec(ctx, query,
		entry.InstanceID,
		entry.StepID,
		entry.CompanyID,
		entry.Action,
		entry.Comment,
		entry.DelegatedTo,
		entry.DelegationReason,
		entry.PerformedBy,
		entry.PerformedAt,
		entry.DedupeKey,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append workflow audit entry")
	}
	return nil
}

// GetByInstanceID returns the audit trail for an instance ordered oldest-first.
func (r *WorkflowAuditRepository) GetByInstanceID(ctx context.Context, instanceID string) ([]*WorkflowAuditEntry, error) {
	query := `
		SELECT id, instance_id, step_id, company_id,
		       action, comment,
		       delegated_to, delegation_reason,
		       performed_by, performed_at, dedupe_key
		FROM workflow_audit_log
		WHERE instance_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, instanceID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow audit log")
	}
	defer rows.Close()

	var entries []*WorkflowAuditEntry
	for rows.Next() {
		entry := &WorkflowAuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.InstanceID,
			&entry.StepID,
			&entry.CompanyID,
			&entry.Action,
			&entry.Comment,
			&entry.DelegatedTo,
			&entry.DelegationReason,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&entry.DedupeKey,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
