package service

import (
	"context"
	"fmt"

	"inphora/models"
)

type notificationService struct {
	uowFactory UnitOfWorkFactory
}

// NewNotificationService creates a new notification service
func NewNotificationService(uowFactory UnitOfWorkFactory) NotificationService {
	return &notificationService{uowFactory: uowFactory}
}

func (s *notificationService) ListForUser(ctx context.Context, userID int64, unreadOnly bool) ([]*models.Notification, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	notifications, err := uow.NotificationRepository().GetByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.NotificationRepository().MarkRead(ctx, notificationID, userID); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
