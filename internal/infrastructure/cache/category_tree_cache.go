package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
)

const (
	// DefaultCategoryTreeTTL is how long a fetched category tree is reused
	DefaultCategoryTreeTTL = 24 * time.Hour

	categoryTreeKeyPrefix = "marketsync:category-tree:"
	// CategoryTreeInvalidationChannel carries marketplace codes whose tree was dropped
	CategoryTreeInvalidationChannel = "marketsync:category-tree:invalidate"

	defaultCleanupInterval = 5 * time.Minute
)

// cacheEntry wraps a cached value with expiration time
type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *cacheEntry[T]) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// CacheStats reports hit and miss counters
type CacheStats struct {
	Hits   int64
	Misses int64
}

// ---------------------------------------------------------------------------
// In-memory
// ---------------------------------------------------------------------------

// InMemoryCategoryTreeCache keeps category trees in process memory
type InMemoryCategoryTreeCache struct {
	trees  sync.Map // MarketplaceCode -> *cacheEntry[[]RemoteCategory]
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	hits   int64
	misses int64
}

var _ integration.RemoteCategoryTreeCache = (*InMemoryCategoryTreeCache)(nil)

// NewInMemoryCategoryTreeCache creates an in-memory cache. A non-positive
// ttl uses DefaultCategoryTreeTTL.
func NewInMemoryCategoryTreeCache(ttl time.Duration, logger *zap.Logger) *InMemoryCategoryTreeCache {
	if ttl <= 0 {
		ttl = DefaultCategoryTreeTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryCategoryTreeCache{ttl: ttl, logger: logger, now: time.Now}
}

// Get returns the cached tree of a marketplace
func (c *InMemoryCategoryTreeCache) Get(_ context.Context, marketplace integration.MarketplaceCode) ([]integration.RemoteCategory, bool, error) {
	if value, ok := c.trees.Load(marketplace); ok {
		entry := value.(*cacheEntry[[]integration.RemoteCategory])
		if !entry.isExpired(c.now()) {
			atomic.AddInt64(&c.hits, 1)
			return entry.value, true, nil
		}
		c.trees.Delete(marketplace)
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, false, nil
}

// Set stores the tree of a marketplace
func (c *InMemoryCategoryTreeCache) Set(_ context.Context, marketplace integration.MarketplaceCode, tree []integration.RemoteCategory) error {
	c.trees.Store(marketplace, &cacheEntry[[]integration.RemoteCategory]{
		value:     tree,
		expiresAt: c.now().Add(c.ttl),
	})
	c.logger.Debug("Cached category tree",
		zap.String("marketplace", string(marketplace)),
		zap.Int("categories", len(tree)))
	return nil
}

// Invalidate drops the tree of a marketplace
func (c *InMemoryCategoryTreeCache) Invalidate(_ context.Context, marketplace integration.MarketplaceCode) error {
	c.trees.Delete(marketplace)
	return nil
}

// Stats returns hit and miss counters
func (c *InMemoryCategoryTreeCache) Stats() CacheStats {
	return CacheStats{Hits: atomic.LoadInt64(&c.hits), Misses: atomic.LoadInt64(&c.misses)}
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// RedisCategoryTreeCache stores category trees in Redis as JSON, shared by
// every instance
type RedisCategoryTreeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ integration.RemoteCategoryTreeCache = (*RedisCategoryTreeCache)(nil)

// NewRedisCategoryTreeCache creates a Redis-backed cache
func NewRedisCategoryTreeCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCategoryTreeCache {
	if ttl <= 0 {
		ttl = DefaultCategoryTreeTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCategoryTreeCache{client: client, ttl: ttl, logger: logger}
}

func categoryTreeKey(marketplace integration.MarketplaceCode) string {
	return categoryTreeKeyPrefix + string(marketplace)
}

// Get returns the cached tree of a marketplace
func (c *RedisCategoryTreeCache) Get(ctx context.Context, marketplace integration.MarketplaceCode) ([]integration.RemoteCategory, bool, error) {
	data, err := c.client.Get(ctx, categoryTreeKey(marketplace)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get category tree from redis: %w", err)
	}

	var tree []integration.RemoteCategory
	if err := json.Unmarshal(data, &tree); err != nil {
		// a corrupt entry is a miss; the caller refetches and overwrites it
		c.logger.Warn("Discarding unreadable category tree",
			zap.String("marketplace", string(marketplace)),
			zap.Error(err))
		return nil, false, nil
	}
	return tree, true, nil
}

// Set stores the tree of a marketplace
func (c *RedisCategoryTreeCache) Set(ctx context.Context, marketplace integration.MarketplaceCode, tree []integration.RemoteCategory) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal category tree: %w", err)
	}
	if err := c.client.Set(ctx, categoryTreeKey(marketplace), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set category tree in redis: %w", err)
	}
	return nil
}

// Invalidate drops the tree of a marketplace
func (c *RedisCategoryTreeCache) Invalidate(ctx context.Context, marketplace integration.MarketplaceCode) error {
	if err := c.client.Del(ctx, categoryTreeKey(marketplace)).Err(); err != nil {
		return fmt.Errorf("failed to delete category tree from redis: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tiered
// ---------------------------------------------------------------------------

// TieredCategoryTreeCache reads through a local L1 cache to a shared L2.
// Invalidations are published on a Redis channel so other instances drop
// their L1 copy.
type TieredCategoryTreeCache struct {
	l1     *InMemoryCategoryTreeCache
	l2     integration.RemoteCategoryTreeCache
	pubsub *redis.Client
	logger *zap.Logger

	mu       sync.Mutex
	cancelFn context.CancelFunc
	doneCh   chan struct{}
}

var _ integration.RemoteCategoryTreeCache = (*TieredCategoryTreeCache)(nil)

// NewTieredCategoryTreeCache creates a tiered cache. pubsub may be nil for a
// single instance deployment.
func NewTieredCategoryTreeCache(l1 *InMemoryCategoryTreeCache, l2 integration.RemoteCategoryTreeCache, pubsub *redis.Client, logger *zap.Logger) *TieredCategoryTreeCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredCategoryTreeCache{l1: l1, l2: l2, pubsub: pubsub, logger: logger}
}

// Get checks L1, then L2, filling L1 on an L2 hit
func (c *TieredCategoryTreeCache) Get(ctx context.Context, marketplace integration.MarketplaceCode) ([]integration.RemoteCategory, bool, error) {
	if tree, ok, _ := c.l1.Get(ctx, marketplace); ok {
		return tree, true, nil
	}
	tree, ok, err := c.l2.Get(ctx, marketplace)
	if err != nil {
		c.logger.Warn("L2 category tree cache unavailable", zap.Error(err))
		return nil, false, nil
	}
	if ok {
		_ = c.l1.Set(ctx, marketplace, tree)
	}
	return tree, ok, nil
}

// Set writes both tiers
func (c *TieredCategoryTreeCache) Set(ctx context.Context, marketplace integration.MarketplaceCode, tree []integration.RemoteCategory) error {
	_ = c.l1.Set(ctx, marketplace, tree)
	return c.l2.Set(ctx, marketplace, tree)
}

// Invalidate drops both tiers and notifies other instances
func (c *TieredCategoryTreeCache) Invalidate(ctx context.Context, marketplace integration.MarketplaceCode) error {
	_ = c.l1.Invalidate(ctx, marketplace)
	if err := c.l2.Invalidate(ctx, marketplace); err != nil {
		return err
	}
	if c.pubsub != nil {
		if err := c.pubsub.Publish(ctx, CategoryTreeInvalidationChannel, string(marketplace)).Err(); err != nil {
			return fmt.Errorf("failed to publish category tree invalidation: %w", err)
		}
	}
	return nil
}

// StartInvalidationSubscription drops L1 entries announced by other instances
func (c *TieredCategoryTreeCache) StartInvalidationSubscription(ctx context.Context) error {
	if c.pubsub == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFn != nil {
		return nil
	}

	sub := c.pubsub.Subscribe(ctx, CategoryTreeInvalidationChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", CategoryTreeInvalidationChannel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelFn = cancel
	c.doneCh = make(chan struct{})

	go func() {
		defer close(c.doneCh)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				code := integration.MarketplaceCode(msg.Payload)
				_ = c.l1.Invalidate(ctx, code)
				c.logger.Debug("Category tree invalidated by peer", zap.String("marketplace", msg.Payload))
			}
		}
	}()
	return nil
}

// Close stops the invalidation subscription
func (c *TieredCategoryTreeCache) Close() error {
	c.mu.Lock()
	cancel, done := c.cancelFn, c.doneCh
	c.cancelFn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}
	return nil
}
