package shared

import (
	"context"
	"time"
)

// IdempotencyStore records webhook delivery keys. Marketplaces redeliver a
// notification until they see a 2xx, so the first delivery claims its key and
// later copies are acknowledged without being queued again.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl and reports false when the key is
	// already claimed
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget releases a claim whose delivery could not be queued
	Forget(ctx context.Context, key string) error

	Close() error
}

// DefaultDedupeTTL outlives the longest marketplace redelivery window
const DefaultDedupeTTL = 72 * time.Hour

// IdempotencyConfig controls webhook deduplication
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: DefaultDedupeTTL, Enabled: true}
}
