package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dejobratic/orderflow/internal/events"
)

// NotificationStatus tracks a notification through its delivery lifecycle.
type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

// NotificationChannel names the delivery channel. Order events currently
// only produce email notifications.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelPush  NotificationChannel = "push"
)

// Notification is a customer-facing message derived from an order event.
// Sent and failed are terminal: a notification never leaves either state.
type Notification struct {
	ID            string              `json:"id"`
	OrderID       string              `json:"order_id"`
	Topic         string              `json:"topic"`
	Channel       NotificationChannel `json:"channel"`
	Recipient     string              `json:"recipient"`
	Subject       string              `json:"subject"`
	Body          string              `json:"body"`
	Status        NotificationStatus  `json:"status"`
	FailureReason string              `json:"failure_reason,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	SentAt        *time.Time          `json:"sent_at,omitempty"`
}

// IsTerminal reports whether the notification reached a final delivery state.
func (s NotificationStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// DedupKey identifies the single notification an event may produce. One order
// event topic maps to at most one notification per order, which is what makes
// redeliveries safe to absorb.
func DedupKey(orderID, topic string) string {
	return orderID + ":" + topic
}

// DedupKey returns the notification's own idempotency key.
func (n Notification) DedupKey() string {
	return DedupKey(n.OrderID, n.Topic)
}

// FromOrderCreated derives the pending notification for an order.created event.
func FromOrderCreated(evt events.OrderCreated) Notification {
	return Notification{
		ID:        uuid.NewString(),
		OrderID:   evt.OrderID,
		Topic:     string(events.TopicOrderCreated),
		Channel:   ChannelEmail,
		Recipient: evt.CustomerEmail,
		Subject:   "Your order has been received",
		Body: fmt.Sprintf("Hi %s, your order %s totaling %s has been received and is awaiting confirmation.",
			evt.CustomerName, evt.OrderID, FormatAmount(evt.TotalAmountCents)),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// FromOrderConfirmed derives the pending notification for an order.confirmed
// event.
func FromOrderConfirmed(evt events.OrderConfirmed) Notification {
	return Notification{
		ID:        uuid.NewString(),
		OrderID:   evt.OrderID,
		Topic:     string(events.TopicOrderConfirmed),
		Channel:   ChannelEmail,
		Recipient: evt.CustomerEmail,
		Subject:   "Your order has been confirmed",
		Body: fmt.Sprintf("Hi %s, your order %s has been confirmed and is now being processed.",
			evt.CustomerName, evt.OrderID),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// FormatAmount renders an amount in cents as a dollar string.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
