package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/dejobratic/orderflow/internal/bus"
	"github.com/dejobratic/orderflow/internal/events"
)

const (
	defaultPartitions      = 8
	defaultBufferSize      = 256
	defaultMaxRedeliveries = 5
	defaultRedeliveryDelay = 20 * time.Millisecond
)

// Bus is an in-process publish/subscribe channel with the same observable
// contract as a partitioned broker: per-key ordering, at-least-once delivery
// to each consumer group, duplicates possible on handler failure. It backs
// local development and tests; the rabbitmq adapter covers deployments.
type Bus struct {
	partitions      int
	bufferSize      int
	maxRedeliveries int
	redeliveryDelay time.Duration
	logger          *slog.Logger

	mu     sync.Mutex
	groups map[string]*group
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

type group struct {
	name    string
	topics  map[bus.Topic]struct{}
	handler bus.Handler
	queues  []chan events.Envelope
}

// Option adjusts bus behavior.
type Option func(*Bus)

// WithPartitions sets the number of partitions per consumer group.
func WithPartitions(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.partitions = n
		}
	}
}

// WithBufferSize sets the per-partition queue capacity.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithMaxRedeliveries caps how often a failing event is retried before it is
// dropped. A real broker would park the event on a dead-letter queue instead.
func WithMaxRedeliveries(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxRedeliveries = n
		}
	}
}

// WithRedeliveryDelay sets the pause between redelivery attempts.
func WithRedeliveryDelay(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.redeliveryDelay = d
		}
	}
}

// NewBus constructs an in-memory bus.
func NewBus(logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		partitions:      defaultPartitions,
		bufferSize:      defaultBufferSize,
		maxRedeliveries: defaultMaxRedeliveries,
		redeliveryDelay: defaultRedeliveryDelay,
		logger:          logger,
		groups:          make(map[string]*group),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a consumer group. Groups must subscribe before events
// for them are published; events published earlier are not replayed.
func (b *Bus) Subscribe(ctx context.Context, name string, topics []bus.Topic, handler bus.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("subscribe %s: bus is closed", name)
	}
	if _, exists := b.groups[name]; exists {
		return fmt.Errorf("subscribe %s: group already registered", name)
	}

	g := &group{
		name:    name,
		topics:  make(map[bus.Topic]struct{}, len(topics)),
		handler: handler,
		queues:  make([]chan events.Envelope, b.partitions),
	}
	for _, topic := range topics {
		g.topics[topic] = struct{}{}
	}

	for i := range g.queues {
		g.queues[i] = make(chan events.Envelope, b.bufferSize)
		b.wg.Add(1)
		go b.consumePartition(ctx, g, g.queues[i])
	}

	b.groups[name] = g
	return nil
}

// Publish routes the envelope to the partition owned by its key in every
// subscribed group. It returns once every group has buffered the event.
func (b *Bus) Publish(ctx context.Context, env events.Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("publish %s: bus is closed", env.Topic)
	}
	var targets []chan events.Envelope
	for _, g := range b.groups {
		if _, ok := g.topics[env.Topic]; !ok {
			continue
		}
		targets = append(targets, g.queues[b.partitionFor(env.Key)])
	}
	b.mu.Unlock()

	for _, queue := range targets {
		select {
		case queue <- env:
		case <-b.done:
			// Close ran while this publish was blocked on a full partition.
			return fmt.Errorf("publish %s: bus is closed", env.Topic)
		case <-ctx.Done():
			return fmt.Errorf("publish %s: %w", env.Topic, ctx.Err())
		}
	}
	return nil
}

// Close stops accepting publishes, lets consumers drain what was already
// buffered and waits for in-flight deliveries. The partition queues are never
// closed: a publisher still blocked on a full queue observes done instead,
// which keeps Close safe against concurrent Publish calls.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
}

// consumePartition delivers events one at a time, preserving per-key order.
// A handler error triggers redelivery of the same event; subsequent events on
// the partition wait, mirroring how a stuck consumer blocks a broker
// partition.
func (b *Bus) consumePartition(ctx context.Context, g *group, queue chan events.Envelope) {
	defer b.wg.Done()

	for {
		select {
		case env := <-queue:
			b.deliver(ctx, g, env)
		case <-ctx.Done():
			return
		case <-b.done:
			// Drain events buffered before shutdown, then stop.
			for {
				select {
				case env := <-queue:
					b.deliver(ctx, g, env)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(ctx context.Context, g *group, env events.Envelope) {
	for attempt := 1; attempt <= b.maxRedeliveries; attempt++ {
		err := g.handler(ctx, env)
		if err == nil {
			return
		}

		b.logger.WarnContext(ctx, "event delivery failed",
			"group", g.name,
			"topic", env.Topic,
			"key", env.Key,
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-time.After(b.redeliveryDelay):
		case <-ctx.Done():
			return
		}
	}

	b.logger.ErrorContext(ctx, "event dropped after redelivery cap",
		"group", g.name,
		"topic", env.Topic,
		"key", env.Key,
		"redeliveries", b.maxRedeliveries,
	)
}

func (b *Bus) partitionFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(b.partitions))
}
