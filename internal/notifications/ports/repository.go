package ports

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/orderflow/internal/notifications/domain"
)

// ErrNotFound is returned when a requested notification does not exist.
var ErrNotFound = errors.New("notification not found")

// ErrAlreadyExists is returned when creating a notification whose dedup key is
// already taken. Callers treat this as a concurrent duplicate, not a failure.
var ErrAlreadyExists = errors.New("notification already exists")

// NotificationRepository persists notifications and enforces the one
// notification per (order, topic) invariant.
type NotificationRepository interface {
	Create(ctx context.Context, notification domain.Notification) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
	List(ctx context.Context) ([]domain.Notification, error)
	FindByOrderID(ctx context.Context, orderID string) ([]domain.Notification, error)
	FindByDedupKey(ctx context.Context, orderID, topic string) (*domain.Notification, error)
}
