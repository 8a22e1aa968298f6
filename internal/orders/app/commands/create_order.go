package commands

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

type CreateOrderCommand struct {
	CustomerName  string
	CustomerEmail string
	LineItems     []domain.LineItem
}

func (c CreateOrderCommand) Validate() error {
	if strings.TrimSpace(c.CustomerName) == "" {
		return domain.ValidationError("customer_name is required")
	}
	if strings.TrimSpace(c.CustomerEmail) == "" {
		return domain.ValidationError("customer_email is required")
	}
	if !strings.Contains(c.CustomerEmail, "@") {
		return domain.ValidationError("customer_email must be valid")
	}
	if len(c.LineItems) == 0 {
		return domain.ValidationError("line_items must not be empty")
	}
	return nil
}

type CreateOrderHandler interface {
	Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
}

type CreateOrderCommandHandler struct {
	repo   ports.OrderRepository
	events ports.EventPublisher
}

func NewCreateOrderCommandHandler(
	repo ports.OrderRepository,
	events ports.EventPublisher,
) *CreateOrderCommandHandler {
	return &CreateOrderCommandHandler{
		repo:   repo,
		events: events,
	}
}

func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:               uuid.NewString(),
		CustomerName:     cmd.CustomerName,
		CustomerEmail:    cmd.CustomerEmail,
		LineItems:        cmd.LineItems,
		TotalAmountCents: domain.TotalAmount(cmd.LineItems),
		Status:           domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, order); err != nil {
		return nil, err
	}

	// The order is committed at this point. A publish failure is surfaced
	// alongside the order so the caller sees the created state; the publisher
	// is responsible for retrying until the bus acknowledges.
	if err := h.events.PublishOrderCreated(ctx, order); err != nil {
		return &order, err
	}

	return &order, nil
}
