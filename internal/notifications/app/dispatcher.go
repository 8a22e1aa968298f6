package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/orderflow/internal/bus"
	"github.com/dejobratic/orderflow/internal/events"
	"github.com/dejobratic/orderflow/internal/notifications/domain"
	"github.com/dejobratic/orderflow/internal/notifications/metrics"
	"github.com/dejobratic/orderflow/internal/notifications/ports"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

const defaultDeliveryTimeout = 5 * time.Second

// Dispatcher consumes order events and turns each into at most one
// notification per (order, topic). Delivery follows at-least-once semantics:
// an event is only acknowledged once its notification reached a terminal
// state, and redeliveries of already-handled events are absorbed by the
// idempotency check.
type Dispatcher struct {
	repo    ports.NotificationRepository
	sender  ports.Sender
	dedup   ports.DedupIndex
	logger  *slog.Logger
	metrics *metrics.Metrics

	deliveryTimeout time.Duration
	keys            keyedMutex
}

type DispatcherOption func(*Dispatcher)

// WithDedupIndex adds a shared duplicate fast path, typically redis-backed.
// The repository lookup remains authoritative.
func WithDedupIndex(index ports.DedupIndex) DispatcherOption {
	return func(d *Dispatcher) {
		d.dedup = index
	}
}

// WithDeliveryTimeout bounds a single delivery attempt.
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.deliveryTimeout = timeout
	}
}

func NewDispatcher(
	repo ports.NotificationRepository,
	sender ports.Sender,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		repo:            repo,
		sender:          sender,
		logger:          logger,
		metrics:         metrics,
		deliveryTimeout: defaultDeliveryTimeout,
		keys:            keyedMutex{locks: make(map[string]*keyLock)},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Topics lists the event topics the dispatcher subscribes to.
func (d *Dispatcher) Topics() []bus.Topic {
	return []bus.Topic{events.TopicOrderCreated, events.TopicOrderConfirmed}
}

// HandleEvent implements bus.Handler. A nil return acknowledges the event; a
// non-nil return requests redelivery.
func (d *Dispatcher) HandleEvent(ctx context.Context, env events.Envelope) error {
	ctx, span := telemetry.StartSpan(ctx, "Dispatcher.HandleEvent")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("event.id", env.ID),
		attribute.String("event.key", env.Key),
		attribute.String("topic", string(env.Topic)),
	)

	decoded, err := events.Decode(env)
	if err != nil {
		// Neither an unknown topic nor a malformed payload gets better on
		// redelivery, so both are acknowledged and dropped.
		if errors.Is(err, events.ErrUnknownTopic) {
			d.logger.WarnContext(ctx, "skipping event with unknown topic",
				slog.String("event_id", env.ID),
				slog.String("topic", string(env.Topic)),
			)
		} else {
			d.logger.ErrorContext(ctx, "dropping undecodable event",
				slog.String("event_id", env.ID),
				slog.String("topic", string(env.Topic)),
				slog.String("error", err.Error()),
			)
		}
		telemetry.SetSpanSuccess(span)
		return nil
	}

	var notification domain.Notification
	switch payload := decoded.(type) {
	case events.OrderCreated:
		notification = domain.FromOrderCreated(payload)
	case events.OrderConfirmed:
		notification = domain.FromOrderConfirmed(payload)
	}

	// Serializing per dedup key closes the window where two deliveries of the
	// same event race past the duplicate check.
	key := notification.DedupKey()
	unlock := d.keys.lock(key)
	defer unlock()

	if skip, err := d.checkDuplicate(ctx, &notification, key); err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	} else if skip {
		telemetry.SetSpanSuccess(span)
		return nil
	}

	if err := d.deliver(ctx, notification); err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	if d.dedup != nil {
		if err := d.dedup.Mark(ctx, key); err != nil {
			d.logger.WarnContext(ctx, "failed to mark dedup index",
				slog.String("dedup_key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

// checkDuplicate resolves the event against existing state. It reports
// skip=true when the notification already reached a terminal state. When a
// pending record exists from an interrupted earlier delivery, the record is
// adopted so the retry resumes instead of inserting a duplicate.
func (d *Dispatcher) checkDuplicate(ctx context.Context, notification *domain.Notification, key string) (bool, error) {
	if d.dedup != nil {
		seen, err := d.dedup.Seen(ctx, key)
		if err != nil {
			d.logger.WarnContext(ctx, "dedup index lookup failed, falling back to store",
				slog.String("dedup_key", key),
				slog.String("error", err.Error()),
			)
		} else if seen {
			d.recordDuplicate(ctx, notification.Topic, key)
			return true, nil
		}
	}

	existing, err := d.repo.FindByDedupKey(ctx, notification.OrderID, notification.Topic)
	switch {
	case err == nil:
		if existing.Status.IsTerminal() {
			d.recordDuplicate(ctx, notification.Topic, key)
			return true, nil
		}
		*notification = *existing
		return false, nil
	case errors.Is(err, ports.ErrNotFound):
	default:
		return false, err
	}

	if err := d.repo.Create(ctx, *notification); err != nil {
		if errors.Is(err, ports.ErrAlreadyExists) {
			// Another instance created the record between our lookup and
			// insert. Redeliver and let the next attempt resolve it.
			return false, err
		}
		return false, err
	}

	return false, nil
}

func (d *Dispatcher) deliver(ctx context.Context, notification domain.Notification) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()

	start := time.Now()
	sendErr := d.sender.Send(sendCtx, notification)
	d.metrics.RecordDeliveryDuration(ctx, notification.Topic, time.Since(start).Seconds())

	if sendErr != nil {
		if err := d.repo.MarkFailed(ctx, notification.ID, sendErr.Error()); err != nil {
			return err
		}
		d.metrics.RecordDispatched(ctx, notification.Topic, false)
		d.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("notification_id", notification.ID),
			slog.String("order_id", notification.OrderID),
			slog.String("topic", notification.Topic),
			slog.String("error", sendErr.Error()),
		)
		return nil
	}

	if err := d.repo.MarkSent(ctx, notification.ID, time.Now().UTC()); err != nil {
		return err
	}
	d.metrics.RecordDispatched(ctx, notification.Topic, true)
	d.logger.InfoContext(ctx, "notification sent",
		slog.String("notification_id", notification.ID),
		slog.String("order_id", notification.OrderID),
		slog.String("topic", notification.Topic),
		slog.String("recipient", notification.Recipient),
	)
	return nil
}

func (d *Dispatcher) recordDuplicate(ctx context.Context, topic, key string) {
	d.metrics.RecordDuplicateSkipped(ctx, topic)
	d.logger.DebugContext(ctx, "skipping duplicate event",
		slog.String("dedup_key", key),
		slog.String("topic", topic),
	)
}

// keyedMutex provides one mutex per dedup key, dropped once no goroutine
// holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
