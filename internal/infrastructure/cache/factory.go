package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
	"github.com/meschain/marketsync/internal/domain/shared"
	"github.com/meschain/marketsync/internal/infrastructure/config"
)

// Factory builds the Redis-backed stores of the sync engine, falling back to
// in-memory implementations when allowed
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	client *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when
// Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the shared Redis client, connecting on first use
func (f *Factory) Client(ctx context.Context) (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}
	client, err := NewRedisClient(ctx, &redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

// IdempotencyStore creates the webhook dedupe store for the backend
// ("redis" or "memory")
func (f *Factory) IdempotencyStore(ctx context.Context, backend string) (shared.IdempotencyStore, error) {
	if backend == "memory" {
		return NewMemoryDedupeStore(), nil
	}

	client, err := f.Client(ctx)
	if err == nil {
		f.logger.Info("Webhook deliveries are deduplicated in Redis")
		return NewRedisDedupeStore(client, DefaultWebhookKeyPrefix), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for webhook dedupe but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, webhook deliveries are deduplicated per instance",
		zap.Error(err),
	)
	return NewMemoryDedupeStore(), nil
}

// CategoryTreeCache creates the category tree cache: tiered over Redis when
// it is reachable, in-memory otherwise
func (f *Factory) CategoryTreeCache(ctx context.Context, ttl time.Duration) (integration.RemoteCategoryTreeCache, error) {
	l1 := NewInMemoryCategoryTreeCache(ttl, f.logger)

	client, err := f.Client(ctx)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for category tree cache but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, category trees are cached per instance", zap.Error(err))
		return l1, nil
	}

	tiered := NewTieredCategoryTreeCache(l1, NewRedisCategoryTreeCache(client, ttl, f.logger), client, f.logger)
	if err := tiered.StartInvalidationSubscription(ctx); err != nil {
		f.logger.Warn("Category tree invalidations from other instances will not be received", zap.Error(err))
	}
	return tiered, nil
}

// Close closes the shared Redis client
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
