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

type ObservableConfirmOrderHandler struct {
	handler ConfirmOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableConfirmOrderHandler(handler ConfirmOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableConfirmOrderHandler {
	return &ObservableConfirmOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableConfirmOrderHandler) Handle(ctx context.Context, cmd ConfirmOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConfirmOrderCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		duration := time.Since(start).Seconds()
		o.metrics.RecordOrderConfirmationDuration(ctx, duration)
		o.metrics.RecordOrderConfirmed(ctx, success)
	}()

	order, err := o.handler.Handle(ctx, cmd)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		if order != nil {
			o.logger.ErrorContext(ctx, "order confirmed but event publish failed",
				"order_id", order.ID,
				"error", err,
			)
		} else {
			o.logger.WarnContext(ctx, "failed to confirm order",
				"order_id", cmd.OrderID,
				"error", err,
			)
		}
		return order, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
	)

	o.logger.InfoContext(ctx, "order confirmed",
		"order_id", order.ID,
	)

	success = true
	telemetry.SetSpanSuccess(span)

	return order, nil
}
