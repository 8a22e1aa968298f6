package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/metrics"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

type ObservableCreateOrderHandler struct {
	handler CreateOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCreateOrderHandler(handler CreateOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCreateOrderHandler {
	return &ObservableCreateOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCreateOrderHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreateOrderCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		duration := time.Since(start).Seconds()
		o.metrics.RecordOrderCreationDuration(ctx, duration)
		o.metrics.RecordOrderCreated(ctx, success)
	}()

	o.logger.InfoContext(ctx, "creating order",
		"customer_email", cmd.CustomerEmail,
		"line_items", len(cmd.LineItems),
	)

	order, err := o.handler.Handle(ctx, cmd)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		if order != nil {
			// Order committed but the event did not reach the bus.
			o.logger.ErrorContext(ctx, "order created but event publish failed",
				"order_id", order.ID,
				"error", err,
			)
		} else {
			o.logger.ErrorContext(ctx, "failed to create order",
				"error", err,
				"customer_email", cmd.CustomerEmail,
			)
		}
		return order, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.customer_email", order.CustomerEmail),
		attribute.Int64("order.total_amount_cents", order.TotalAmountCents),
		attribute.String("order.status", string(order.Status)),
	)

	o.logger.InfoContext(ctx, "order created successfully",
		"order_id", order.ID,
		"customer_email", order.CustomerEmail,
		"total_amount_cents", order.TotalAmountCents,
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return order, nil
}
