package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/orderflow/internal/bus"
	"github.com/dejobratic/orderflow/internal/events"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

type ObservableEventPublisher struct {
	publisher ports.EventPublisher
	metrics   *bus.Metrics
}

func NewObservableEventPublisher(publisher ports.EventPublisher, metrics *bus.Metrics) *ObservableEventPublisher {
	return &ObservableEventPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *ObservableEventPublisher) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "EventPublisher.PublishOrderCreated")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("event.type", string(events.TopicOrderCreated)),
		attribute.String("topic", string(events.TopicOrderCreated)),
	)

	start := time.Now()
	err := p.publisher.PublishOrderCreated(ctx, order)
	duration := time.Since(start).Seconds()

	p.metrics.RecordPublish(ctx, events.TopicOrderCreated, duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (p *ObservableEventPublisher) PublishOrderConfirmed(ctx context.Context, order domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "EventPublisher.PublishOrderConfirmed")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("event.type", string(events.TopicOrderConfirmed)),
		attribute.String("topic", string(events.TopicOrderConfirmed)),
	)

	start := time.Now()
	err := p.publisher.PublishOrderConfirmed(ctx, order)
	duration := time.Since(start).Seconds()

	p.metrics.RecordPublish(ctx, events.TopicOrderConfirmed, duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
