package ports

import (
	"context"

	"github.com/dejobratic/orderflow/internal/notifications/domain"
)

// Sender delivers a notification over its channel. A nil return means the
// message left the system; any error marks the attempt as failed.
type Sender interface {
	Send(ctx context.Context, notification domain.Notification) error
}
