package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dejobratic/orderflow/internal/events"
)

// RetryingPublisher wraps a Publisher with exponential backoff so that a
// committed state change is never stranded by a transient bus outage. Once
// the backoff window is exhausted the failure surfaces as a PublishError.
type RetryingPublisher struct {
	next        Publisher
	logger      *slog.Logger
	maxInterval time.Duration
	maxElapsed  time.Duration
}

// NewRetryingPublisher wraps next with retry behavior.
func NewRetryingPublisher(next Publisher, logger *slog.Logger) *RetryingPublisher {
	return &RetryingPublisher{
		next:        next,
		logger:      logger,
		maxInterval: 5 * time.Second,
		maxElapsed:  time.Minute,
	}
}

func (p *RetryingPublisher) Publish(ctx context.Context, env events.Envelope) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = p.maxInterval
	policy.MaxElapsedTime = p.maxElapsed

	attempt := 0
	operation := func() error {
		attempt++
		err := p.next.Publish(ctx, env)
		if err != nil {
			p.logger.WarnContext(ctx, "publish attempt failed",
				"topic", env.Topic,
				"key", env.Key,
				"attempt", attempt,
				"error", err,
			)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return &PublishError{Topic: env.Topic, Key: env.Key, Err: err}
	}

	return nil
}
