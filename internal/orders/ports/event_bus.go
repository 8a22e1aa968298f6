package ports

import (
	"context"

	"github.com/dejobratic/orderflow/internal/orders/domain"
)

// EventPublisher defines the contract for publishing order lifecycle events.
// Implementations must guarantee eventual delivery to the bus: a committed
// transition whose publish fails is retried, never dropped.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order domain.Order) error
	PublishOrderConfirmed(ctx context.Context, order domain.Order) error
}
