package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "notifications:dedup:"

// DedupIndex stores handled dedup keys in redis so every dispatcher instance
// shares one duplicate fast path. Entries expire after the TTL; the
// notification store stays authoritative beyond that window.
type DedupIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDedupIndex(client *redis.Client, ttl time.Duration) *DedupIndex {
	return &DedupIndex{client: client, ttl: ttl}
}

func (d *DedupIndex) Seen(ctx context.Context, key string) (bool, error) {
	count, err := d.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup index lookup: %w", err)
	}
	return count > 0, nil
}

func (d *DedupIndex) Mark(ctx context.Context, key string) error {
	if err := d.client.Set(ctx, keyPrefix+key, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("dedup index mark: %w", err)
	}
	return nil
}
