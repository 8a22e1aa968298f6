package ports

import "context"

// DedupIndex is a shared fast path for duplicate detection across dispatcher
// instances. It is best effort: a miss falls back to the repository lookup,
// so losing index state never causes a duplicate send to the same key to
// slip past the store.
type DedupIndex interface {
	// Seen reports whether the key was already marked. It does not mark.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records the key after the notification reaches a terminal state.
	Mark(ctx context.Context, key string) error
}
