package service

import (
	"context"

	"github.com/lumenhr/be-hr-workflows/internal/client"
	"github.com/lumenhr/be-hr-workflows/internal/logger"
	"github.com/lumenhr/be-hr-workflows/internal/repository"
)

// NotificationService delivers a notification both to the in-app inbox
// (a notifications row the HR frontend reads) and to the delivery service
// via a NATS event. The inbox row is authoritative: an insert failure is
// returned to the caller, an event publish failure is only logged.
type NotificationService struct {
	repo      *repository.NotificationRepository
	publisher *client.NotificationPublisher
	log       *logger.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(
	repo *repository.NotificationRepository,
	publisher *client.NotificationPublisher,
	log *logger.Logger,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		log:       log,
	}
}

// Send persists the notification and publishes the matching event.
func (s *NotificationService) Send(ctx context.Context, n *repository.Notification) error {
	if err := s.repo.Insert(ctx, n); err != nil {
		return err
	}

	s.publisher.PublishWorkflowEvent(&client.NotificationEvent{
		EventType:      n.Type,
		NotificationID: n.ID,
		UserID:         n.UserID,
		Title:          n.Title,
		Message:        n.Message,
		Priority:       n.Priority,
		ReferenceType:  n.ReferenceType,
		ReferenceID:    n.ReferenceID,
	})

	return nil
}
