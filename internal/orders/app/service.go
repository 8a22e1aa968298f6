package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dejobratic/orderflow/internal/orders/app/commands"
	"github.com/dejobratic/orderflow/internal/orders/app/queries"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/metrics"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

// Service bundles use cases for handling orders via the API.
type Service struct {
	repo                ports.OrderRepository
	createOrderHandler  commands.CreateOrderHandler
	confirmOrderHandler commands.ConfirmOrderHandler
	getOrderHandler     *queries.GetOrderQueryHandler
	listOrdersHandler   *queries.ListOrdersQueryHandler
}

// NewService wires required dependencies.
func NewService(
	repo ports.OrderRepository,
	events ports.EventPublisher,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Service {
	createHandler := commands.NewObservableCreateOrderHandler(
		commands.NewCreateOrderCommandHandler(repo, events),
		logger,
		metrics,
	)
	confirmHandler := commands.NewObservableConfirmOrderHandler(
		commands.NewConfirmOrderCommandHandler(repo, events),
		logger,
		metrics,
	)

	return &Service{
		repo:                repo,
		createOrderHandler:  createHandler,
		confirmOrderHandler: confirmHandler,
		getOrderHandler:     queries.NewGetOrderQueryHandler(repo),
		listOrdersHandler:   queries.NewListOrdersQueryHandler(repo),
	}
}

// CreateOrderInput captures payload for creating an order.
type CreateOrderInput struct {
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	LineItems     []domain.LineItem `json:"line_items"`
}

// CreateOrder orchestrates order creation and event emission.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	cmd := commands.CreateOrderCommand{
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		LineItems:     input.LineItems,
	}
	return s.createOrderHandler.Handle(ctx, cmd)
}

// ConfirmOrder transitions a pending order to confirmed and emits the event.
func (s *Service) ConfirmOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.confirmOrderHandler.Handle(ctx, commands.ConfirmOrderCommand{OrderID: id})
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrderHandler.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// ListOrders returns orders using a filter.
func (s *Service) ListOrders(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	return s.listOrdersHandler.Handle(ctx, queries.ListOrdersQuery{Filter: filter})
}

// CancelOrder cancels an order from a cancellable state. No event is
// published for cancellations.
func (s *Service) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(domain.StatusCancelled) {
		return nil, &domain.InvalidTransitionError{
			OrderID: order.ID,
			From:    order.Status,
			To:      domain.StatusCancelled,
		}
	}

	cancelled, err := s.repo.TransitionStatus(ctx, id, order.Status, domain.StatusCancelled)
	if err != nil {
		if errors.Is(err, ports.ErrStatusConflict) {
			current, readErr := s.repo.GetByID(ctx, id)
			if readErr != nil {
				return nil, readErr
			}
			return nil, &domain.InvalidTransitionError{
				OrderID: order.ID,
				From:    current.Status,
				To:      domain.StatusCancelled,
			}
		}
		return nil, err
	}

	return cancelled, nil
}
