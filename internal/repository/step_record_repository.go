package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lumenhr/be-hr-workflows/internal/database"
	"github.com/lumenhr/be-hr-workflows/internal/errors"
)

// StepRecordRepository tracks an instance's passage through its steps.
type StepRecordRepository struct {
	db *database.DB
}

// NewStepRecordRepository creates a new StepRecordRepository.
func NewStepRecordRepository(db *database.DB) *StepRecordRepository {
	return &StepRecordRepository{db: db}
}

// MarkExpired closes the open record for a step as expired. The open record
// is the one for this step order with no completed_at yet. Missing records
// are tolerated: the step may have been entered before tracking existed.
func (r *StepRecordRepository) MarkExpired(ctx context.Context, instanceID string, stepOrder int, now time.Time) error {
	query := `
		UPDATE workflow_step_records
		SET expired_at  = $3,
		    sla_status  = 'expired',
		    was_overdue = TRUE,
		    updated_at  = NOW()
		WHERE instance_id = $1
		  AND step_order = $2
		  AND completed_at IS NULL
	`

	_, err := r.db.Exec(ctx, query, instanceID, stepOrder, now)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark step record expired")
	}
	return nil
}

// GetOpenByInstance returns the open (uncompleted) record for an instance's
// current step, or nil when none exists.
func (r *StepRecordRepository) GetOpenByInstance(ctx context.Context, instanceID string, stepOrder int) (*StepRecord, error) {
	query := `
		SELECT id, instance_id, step_order, started_at,
		       completed_at, expired_at, sla_status, was_overdue,
		       created_at, updated_at
		FROM workflow_step_records
		WHERE instance_id = $1
		  AND step_order = $2
		  AND completed_at IS NULL
	`

	rec := &StepRecord{}
	err := r.db.QueryRow(ctx, query, instanceID, stepOrder).Scan(
		&rec.ID,
		&rec.InstanceID,
		&rec.StepOrder,
		&rec.StartedAt,
		&rec.CompletedAt,
		&rec.ExpiredAt,
		&rec.SLAStatus,
		&rec.WasOverdue,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get step record")
	}
	return rec, nil
}
