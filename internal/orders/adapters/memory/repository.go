package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

// Repository provides an in-memory store useful for local development and tests.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

// Create stores a new order instance.
func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	clone := cloneOrder(order)
	return &clone, nil
}

// List returns orders respecting the provided filter. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	// Newest first, matching the postgres adapter.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// TransitionStatus applies a compare-and-set status change so concurrent
// transitions on the same order serialize against the invariant check.
func (r *Repository) TransitionStatus(_ context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}

	if order.Status != from {
		return nil, ports.ErrStatusConflict
	}

	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order

	clone := cloneOrder(order)
	return &clone, nil
}

// cloneOrder copies the order including its line item slice so callers cannot
// mutate stored state through aliasing.
func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.LineItem, len(order.LineItems))
	copy(items, order.LineItems)
	order.LineItems = items
	return order
}
