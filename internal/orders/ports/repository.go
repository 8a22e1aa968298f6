package ports

import (
	"context"
	"errors"

	"github.com/dejobratic/orderflow/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// TransitionStatus atomically moves the order from one status to another
	// and returns the updated order. It fails with ErrStatusConflict when the
	// current status no longer matches from, which is how concurrent
	// transitions on the same order are serialized.
	TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
}

// ListFilter narrows list queries by status and pagination.
type ListFilter struct {
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrStatusConflict is returned when a transition loses a race: the order
	// exists but its status changed since it was read.
	ErrStatusConflict = errors.New("order status changed concurrently")
)
