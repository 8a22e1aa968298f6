package adapters

import (
	"context"

	"github.com/dejobratic/orderflow/internal/bus"
	"github.com/dejobratic/orderflow/internal/events"
	"github.com/dejobratic/orderflow/internal/orders/domain"
)

// BusEventPublisher translates order lifecycle notifications into event
// envelopes and hands them to the bus. Envelopes are keyed by order ID so all
// events for one order land on the same partition.
type BusEventPublisher struct {
	publisher bus.Publisher
}

func NewBusEventPublisher(publisher bus.Publisher) *BusEventPublisher {
	return &BusEventPublisher{publisher: publisher}
}

func (p *BusEventPublisher) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	payload := events.OrderCreated{
		OrderID:          order.ID,
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		TotalAmountCents: order.TotalAmountCents,
		Items:            eventItems(order.LineItems),
		Status:           string(order.Status),
		CreatedAt:        order.CreatedAt,
	}

	env, err := events.NewEnvelope(events.TopicOrderCreated, order.ID, payload)
	if err != nil {
		return err
	}

	return p.publisher.Publish(ctx, env)
}

func (p *BusEventPublisher) PublishOrderConfirmed(ctx context.Context, order domain.Order) error {
	payload := events.OrderConfirmed{
		OrderID:          order.ID,
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		TotalAmountCents: order.TotalAmountCents,
		Items:            eventItems(order.LineItems),
		Status:           string(order.Status),
		UpdatedAt:        order.UpdatedAt,
	}

	env, err := events.NewEnvelope(events.TopicOrderConfirmed, order.ID, payload)
	if err != nil {
		return err
	}

	return p.publisher.Publish(ctx, env)
}

func eventItems(items []domain.LineItem) []events.Item {
	out := make([]events.Item, len(items))
	for i, item := range items {
		out[i] = events.Item{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	return out
}
