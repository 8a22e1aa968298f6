package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dejobratic/orderflow/internal/bus"
	"github.com/dejobratic/orderflow/internal/events"
)

const defaultPrefetch = 10

// Bus adapts the abstract event bus contract to RabbitMQ. Events are
// published to a topic exchange with the event topic as routing key; each
// consumer group owns a durable queue bound to its topics. Per-key ordering
// holds as long as a queue has a single consumer, which Subscribe enforces.
type Bus struct {
	conn     *amqp.Connection
	exchange string
	prefetch int
	logger   *slog.Logger

	pubCh *amqp.Channel
}

// Config carries connection settings for the RabbitMQ adapter.
type Config struct {
	URL      string
	Exchange string
	Prefetch int
}

// Dial connects to RabbitMQ and declares the topic exchange.
func Dial(cfg Config, logger *slog.Logger) (*Bus, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}

	if err := pubCh.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		pubCh.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if err := pubCh.Confirm(false); err != nil {
		pubCh.Close()
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	return &Bus{
		conn:     conn,
		exchange: cfg.Exchange,
		prefetch: prefetch,
		logger:   logger,
		pubCh:    pubCh,
	}, nil
}

// Close tears down the connection.
func (b *Bus) Close() {
	if b.pubCh != nil {
		b.pubCh.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}

// Publish sends the envelope as a persistent message and waits for the broker
// confirm, so a nil return means the event is on the bus.
func (b *Bus) Publish(ctx context.Context, env events.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	confirm, err := b.pubCh.PublishWithDeferredConfirmWithContext(ctx,
		b.exchange,
		string(env.Topic),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.ID,
			Timestamp:    env.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", env.Topic, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", env.Topic, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s for key %s", env.Topic, env.Key)
	}
	return nil
}

// Subscribe declares a durable queue for the group, binds it to the topics
// and consumes with manual acknowledgments. A handler error nacks with
// requeue, so the broker redelivers.
func (b *Bus) Subscribe(ctx context.Context, group string, topics []bus.Topic, handler bus.Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}

	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	queue, err := ch.QueueDeclare(
		group,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("declare queue %s: %w", group, err)
	}

	for _, topic := range topics {
		if err := ch.QueueBind(queue.Name, string(topic), b.exchange, false, nil); err != nil {
			ch.Close()
			return fmt.Errorf("bind %s to %s: %w", queue.Name, topic, err)
		}
	}

	deliveries, err := ch.Consume(
		queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("register consumer for %s: %w", queue.Name, err)
	}

	go b.consume(ctx, ch, group, deliveries, handler)
	return nil
}

func (b *Bus) consume(ctx context.Context, ch *amqp.Channel, group string, deliveries <-chan amqp.Delivery, handler bus.Handler) {
	defer ch.Close()

	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				return
			}
			b.handleDelivery(ctx, group, msg, handler)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) handleDelivery(ctx context.Context, group string, msg amqp.Delivery, handler bus.Handler) {
	var env events.Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		// Undecodable envelopes can never succeed; requeueing would loop.
		b.logger.ErrorContext(ctx, "discarding undecodable event",
			"group", group,
			"message_id", msg.MessageId,
			"error", err,
		)
		_ = msg.Nack(false, false)
		return
	}

	if err := handler(ctx, env); err != nil {
		b.logger.WarnContext(ctx, "event handling failed, requeueing",
			"group", group,
			"topic", env.Topic,
			"key", env.Key,
			"error", err,
		)
		// Brief pause keeps a hot failure from spinning the queue.
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
		}
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}
