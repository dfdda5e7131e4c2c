package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumenhr/be-hr-workflows/internal/database"
	"github.com/lumenhr/be-hr-workflows/internal/errors"
)

// NotificationRepository inserts rows into the in-app notification inbox.
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert writes one notification row. The id is generated client-side so
// the NATS event and the inbox row share an identity.
func (r *NotificationRepository) Insert(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	query := `
		INSERT INTO notifications
		    (id, user_id, title, message,
		     type, priority,
		     reference_type, reference_id)
		VALUES ($1, $2, $3, $4,
		        $5, $6,
		        $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		n.ID,
		n.UserID,
		n.Title,
		n.Message,
		n.Type,
		n.Priority,
		n.ReferenceType,
		n.ReferenceID,
	).Scan(&n.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert notification")
	}
	return nil
}
