package app

import (
	"context"

	"github.com/dejobratic/orderflow/internal/notifications/domain"
	"github.com/dejobratic/orderflow/internal/notifications/ports"
)

// Service exposes the notification read side.
type Service struct {
	repo ports.NotificationRepository
}

func NewService(repo ports.NotificationRepository) *Service {
	return &Service{repo: repo}
}

// ListNotifications returns every recorded notification.
func (s *Service) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	return s.repo.List(ctx)
}

// NotificationsByOrder returns the notifications produced for one order.
func (s *Service) NotificationsByOrder(ctx context.Context, orderID string) ([]domain.Notification, error) {
	return s.repo.FindByOrderID(ctx, orderID)
}
