package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
)

type ConfirmOrderCommand struct {
	OrderID string
}

func (c ConfirmOrderCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return domain.ValidationError("order_id is required")
	}
	return nil
}

type ConfirmOrderHandler interface {
	Handle(ctx context.Context, cmd ConfirmOrderCommand) (*domain.Order, error)
}

type ConfirmOrderCommandHandler struct {
	repo   ports.OrderRepository
	events ports.EventPublisher
}

func NewConfirmOrderCommandHandler(
	repo ports.OrderRepository,
	events ports.EventPublisher,
) *ConfirmOrderCommandHandler {
	return &ConfirmOrderCommandHandler{
		repo:   repo,
		events: events,
	}
}

func (h *ConfirmOrderCommandHandler) Handle(ctx context.Context, cmd ConfirmOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(domain.StatusConfirmed) {
		return nil, &domain.InvalidTransitionError{
			OrderID: order.ID,
			From:    order.Status,
			To:      domain.StatusConfirmed,
		}
	}

	updated, err := h.repo.TransitionStatus(ctx, order.ID, order.Status, domain.StatusConfirmed)
	if err != nil {
		if errors.Is(err, ports.ErrStatusConflict) {
			// Another caller won the race. Report the transition as invalid
			// against whatever the status is now, so "already done" is
			// distinguishable from "succeeded now".
			current, readErr := h.repo.GetByID(ctx, order.ID)
			if readErr != nil {
				return nil, readErr
			}
			return nil, &domain.InvalidTransitionError{
				OrderID: order.ID,
				From:    current.Status,
				To:      domain.StatusConfirmed,
			}
		}
		return nil, err
	}

	// Transition is committed; publish failures surface alongside the
	// confirmed order, never as a rollback.
	if err := h.events.PublishOrderConfirmed(ctx, *updated); err != nil {
		return updated, err
	}

	return updated, nil
}
