package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meschain/marketsync/internal/domain/shared"
)

// DefaultWebhookKeyPrefix namespaces webhook delivery keys
const DefaultWebhookKeyPrefix = "marketsync:webhook:"

// RedisDedupeStore keeps webhook delivery claims in Redis so every instance
// behind the load balancer sees them
type RedisDedupeStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects and pings within five seconds
func NewRedisClient(ctx context.Context, cfg *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(cfg)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisDedupeStore uses a client owned by the caller
func NewRedisDedupeStore(client *redis.Client, prefix string) *RedisDedupeStore {
	if prefix == "" {
		prefix = DefaultWebhookKeyPrefix
	}
	return &RedisDedupeStore{client: client, prefix: prefix}
}

// MarkProcessed claims key with SET NX; concurrent deliveries race on that
// single write
func (s *RedisDedupeStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook delivery %s: %w", key, err)
	}
	return claimed, nil
}

func (s *RedisDedupeStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("release webhook delivery %s: %w", key, err)
	}
	return nil
}

// Close leaves the shared client open
func (s *RedisDedupeStore) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*RedisDedupeStore)(nil)
