package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic identifies the kind of domain event carried by an envelope.
type Topic string

const (
	TopicOrderCreated   Topic = "order.created"
	TopicOrderConfirmed Topic = "order.confirmed"
)

// ErrUnknownTopic is returned when an envelope carries a topic outside the
// closed set of schemas. Consumers acknowledge such events without acting.
var ErrUnknownTopic = errors.New("unknown event topic")

// Envelope is the wire representation of a domain event. Events are facts:
// once published an envelope is never mutated or retracted.
type Envelope struct {
	ID         string          `json:"id"`
	Topic      Topic           `json:"topic"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Item is a line item snapshot embedded in event payloads.
type Item struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// OrderCreated is published after a new order is persisted.
type OrderCreated struct {
	OrderID          string    `json:"order_id"`
	CustomerName     string    `json:"customer_name"`
	CustomerEmail    string    `json:"customer_email"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	Items            []Item    `json:"items"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// OrderConfirmed is published after an order transitions to confirmed. It
// carries the full item snapshot so consumers can reference item detail
// without a lookup back into the order store.
type OrderConfirmed struct {
	OrderID          string    `json:"order_id"`
	CustomerName     string    `json:"customer_name"`
	CustomerEmail    string    `json:"customer_email"`
	TotalAmountCents int64     `json:"total_amount_cents"`
	Items            []Item    `json:"items"`
	Status           string    `json:"status"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewEnvelope wraps a payload in an envelope keyed by order ID. Keying every
// event by order ID is what gives consumers per-order ordering on a
// partitioned bus.
func NewEnvelope(topic Topic, orderID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	return Envelope{
		ID:         uuid.NewString(),
		Topic:      topic,
		Key:        orderID,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}

// Decode validates the envelope against the closed schema set and returns the
// typed payload. An unrecognized topic yields ErrUnknownTopic.
func Decode(env Envelope) (any, error) {
	switch env.Topic {
	case TopicOrderCreated:
		var payload OrderCreated
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Topic, err)
		}
		return payload, nil
	case TopicOrderConfirmed:
		var payload OrderConfirmed
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Topic, err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, env.Topic)
	}
}
