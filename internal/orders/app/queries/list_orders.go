package queries

import (
	"context"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

// ListOrdersQuery retrieves orders, optionally narrowed by status.
type ListOrdersQuery struct {
	Filter ports.ListFilter
}

// ListOrdersQueryHandler executes ListOrdersQuery against the repository.
type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

// NewListOrdersQueryHandler constructs a ListOrdersQueryHandler.
func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

// Handle returns the orders matching the filter.
func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	return h.repo.List(ctx, query.Filter)
}
