package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meschain/marketsync/internal/domain/integration"
)

type recordingObserver struct {
	mu       sync.Mutex
	waits    int
	timeouts int
}

func (o *recordingObserver) RecordLimiterWait(_ context.Context, _, _ string, _ time.Duration, timedOut bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waits++
	if timedOut {
		o.timeouts++
	}
}

func testLimits(capacity int, refill float64, timeout time.Duration) map[integration.MarketplaceCode]MarketplaceLimits {
	return map[integration.MarketplaceCode]MarketplaceLimits{
		integration.MarketplaceTrendyol: {
			Default:        BucketConfig{Capacity: capacity, RefillPerSecond: refill},
			AcquireTimeout: timeout,
		},
	}
}

func TestLimiter_BurstUpToCapacity(t *testing.T) {
	limiter := NewLimiter(testLimits(5, 0.01, 20*time.Millisecond), nil)

	granted := 0
	for i := 0; i < 10; i++ {
		if limiter.TryAcquire(integration.MarketplaceTrendyol, integration.EndpointStockPrice) {
			granted++
		}
	}
	assert.Equal(t, 5, granted)
}

func TestLimiter_Acquire(t *testing.T) {
	limiter := NewLimiter(testLimits(2, 100, time.Second), nil)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx, integration.MarketplaceTrendyol, integration.EndpointProductRead))
	require.NoError(t, limiter.Acquire(ctx, integration.MarketplaceTrendyol, integration.EndpointProductRead))
	// third call waits for a refill of 10ms
	require.NoError(t, limiter.Acquire(ctx, integration.MarketplaceTrendyol, integration.EndpointProductRead))

	stats := limiter.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(3), stats[0].TotalAcquired)
	assert.Equal(t, int64(0), stats[0].TotalTimedOut)
	assert.Equal(t, 2, stats[0].Capacity)
}

func TestLimiter_AcquireTimeout(t *testing.T) {
	limiter := NewLimiter(testLimits(1, 0.01, 20*time.Millisecond), nil)
	obs := &recordingObserver{}
	limiter.SetObserver(obs)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx, integration.MarketplaceTrendyol, integration.EndpointOrderRead))

	err := limiter.Acquire(ctx, integration.MarketplaceTrendyol, integration.EndpointOrderRead)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrRateLimitTimeout)
	assert.Equal(t, integration.ErrorKindRateLimitTimeout, integration.Classify(err))

	assert.Equal(t, 2, obs.waits)
	assert.Equal(t, 1, obs.timeouts)
	assert.Equal(t, int64(1), limiter.Stats()[0].TotalTimedOut)
}

func TestLimiter_AcquireCancelled(t *testing.T) {
	limiter := NewLimiter(testLimits(1, 0.01, time.Minute), nil)
	require.True(t, limiter.TryAcquire(integration.MarketplaceTrendyol, integration.EndpointOrderRead))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := limiter.Acquire(ctx, integration.MarketplaceTrendyol, integration.EndpointOrderRead)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, integration.ErrRateLimitTimeout)
}

func TestLimiter_UnknownMarketplace(t *testing.T) {
	limiter := NewLimiter(nil, nil)
	err := limiter.Acquire(context.Background(), integration.MarketplaceCode("ETSY"), integration.EndpointAuth)
	assert.ErrorIs(t, err, integration.ErrMarketplaceUnknown)
}

func TestLimiter_BucketsAreIndependent(t *testing.T) {
	limiter := NewLimiter(testLimits(1, 0.01, 10*time.Millisecond), nil)

	assert.True(t, limiter.TryAcquire(integration.MarketplaceTrendyol, integration.EndpointStockPrice))
	assert.False(t, limiter.TryAcquire(integration.MarketplaceTrendyol, integration.EndpointStockPrice))

	// other class, other marketplace
	assert.True(t, limiter.TryAcquire(integration.MarketplaceTrendyol, integration.EndpointOrderRead))
	assert.True(t, limiter.TryAcquire(integration.MarketplaceOzon, integration.EndpointStockPrice))
}

func TestLimiter_ClassOverride(t *testing.T) {
	limiter := NewLimiter(nil, nil)

	limiter.TryAcquire(integration.MarketplaceAmazon, integration.EndpointOrderRead)
	limiter.TryAcquire(integration.MarketplaceAmazon, integration.EndpointProductRead)

	byClass := map[integration.EndpointClass]BucketStats{}
	for _, s := range limiter.Stats() {
		byClass[s.EndpointClass] = s
	}
	assert.Equal(t, 20, byClass[integration.EndpointOrderRead].Capacity)
	assert.Equal(t, 10, byClass[integration.EndpointProductRead].Capacity)
}

func TestLimiter_Pause(t *testing.T) {
	limiter := NewLimiter(testLimits(10, 100, 15*time.Millisecond), nil)

	limiter.Pause(integration.MarketplaceTrendyol, integration.EndpointStockPrice, time.Second)
	assert.False(t, limiter.TryAcquire(integration.MarketplaceTrendyol, integration.EndpointStockPrice))

	err := limiter.Acquire(context.Background(), integration.MarketplaceTrendyol, integration.EndpointStockPrice)
	assert.ErrorIs(t, err, integration.ErrRateLimitTimeout)

	stats := limiter.Stats()
	require.Len(t, stats, 1)
	require.NotNil(t, stats[0].PausedUntil)

	// a shorter pause does not shorten the current one
	limiter.Pause(integration.MarketplaceTrendyol, integration.EndpointStockPrice, time.Millisecond)
	assert.False(t, limiter.TryAcquire(integration.MarketplaceTrendyol, integration.EndpointStockPrice))
}

func TestLimiter_ConcurrentAcquireNeverExceedsCapacity(t *testing.T) {
	limiter := NewLimiter(testLimits(20, 0.01, 30*time.Millisecond), nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background(), integration.MarketplaceTrendyol, integration.EndpointProductWrite); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, granted)
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	for _, code := range integration.AllMarketplaces() {
		l, ok := limits[code]
		require.True(t, ok, "missing limits for %s", code)
		assert.Greater(t, l.Default.Capacity, 0)
		assert.Greater(t, l.Default.RefillPerSecond, 0.0)
		assert.Greater(t, l.AcquireTimeout, time.Duration(0))
	}
}

func TestBucketConfig_Normalized(t *testing.T) {
	tests := []struct {
		name string
		in   BucketConfig
		want BucketConfig
	}{
		{"zero", BucketConfig{}, BucketConfig{Capacity: 1, RefillPerSecond: 1}},
		{"negative", BucketConfig{Capacity: -3, RefillPerSecond: -1}, BucketConfig{Capacity: 1, RefillPerSecond: 1}},
		{"kept", BucketConfig{Capacity: 7, RefillPerSecond: 0.5}, BucketConfig{Capacity: 7, RefillPerSecond: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.normalized())
		})
	}
}
