package bus

import (
	"context"
	"fmt"

	"github.com/dejobratic/orderflow/internal/events"
)

// Handler processes a delivered event. Returning a non-nil error signals the
// bus to redeliver; returning nil acknowledges the event.
type Handler func(ctx context.Context, env events.Envelope) error

// Publisher sends domain events to the bus. Implementations must only return
// nil once the bus has durably accepted the event.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Subscriber delivers events to a consumer group. Within a group, events
// sharing a key are delivered one at a time in publish order; delivery is
// at-least-once, so handlers must tolerate duplicates.
type Subscriber interface {
	Subscribe(ctx context.Context, group string, topics []Topic, handler Handler) error
}

// Topic aliases the event topic type for subscription lists.
type Topic = events.Topic

// PublishError marks an event that the bus did not acknowledge after the
// owning state change was already committed. Callers must not treat it as a
// rollback of that change.
type PublishError struct {
	Topic Topic
	Key   string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s for key %s: %v", e.Topic, e.Key, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
