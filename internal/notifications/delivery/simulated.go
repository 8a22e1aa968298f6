package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/dejobratic/orderflow/internal/notifications/domain"
)

// SimulatedSender stands in for a real email provider. Each send sleeps for a
// configurable latency and then succeeds with a configurable probability,
// which exercises the same retry and failure paths a flaky provider would.
type SimulatedSender struct {
	logger      *slog.Logger
	successRate float64
	latency     time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

type Option func(*SimulatedSender)

// WithSuccessRate sets the probability in [0, 1] that a send succeeds.
func WithSuccessRate(rate float64) Option {
	return func(s *SimulatedSender) {
		s.successRate = rate
	}
}

// WithLatency sets the simulated provider round-trip time.
func WithLatency(latency time.Duration) Option {
	return func(s *SimulatedSender) {
		s.latency = latency
	}
}

// WithRandSource pins the random source, used by tests to make outcomes
// deterministic.
func WithRandSource(src rand.Source) Option {
	return func(s *SimulatedSender) {
		s.rand = rand.New(src)
	}
}

func NewSimulatedSender(logger *slog.Logger, opts ...Option) *SimulatedSender {
	s := &SimulatedSender{
		logger:      logger,
		successRate: 0.9,
		latency:     time.Second,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send blocks for the configured latency, honoring context cancellation, and
// fails a fraction of attempts.
func (s *SimulatedSender) Send(ctx context.Context, notification domain.Notification) error {
	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("send %s notification to %s: %w", notification.Topic, notification.Recipient, ctx.Err())
	case <-timer.C:
	}

	s.mu.Lock()
	roll := s.rand.Float64()
	s.mu.Unlock()

	if roll >= s.successRate {
		return fmt.Errorf("send %s notification to %s: provider rejected message", notification.Topic, notification.Recipient)
	}

	s.logger.DebugContext(ctx, "notification delivered",
		slog.String("notification_id", notification.ID),
		slog.String("recipient", notification.Recipient),
		slog.String("topic", notification.Topic),
	)
	return nil
}
