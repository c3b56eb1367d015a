// Package ratelimit gates marketplace calls with one token bucket per
// (marketplace, endpoint class).
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// WaitObserver receives limiter waits, implemented by telemetry.SyncMetrics
type WaitObserver interface {
	RecordLimiterWait(ctx context.Context, marketplace, endpointClass string, wait time.Duration, timedOut bool)
}

type bucketKey struct {
	marketplace integration.MarketplaceCode
	class       integration.EndpointClass
}

// bucket is one token bucket plus its statistics
type bucket struct {
	limiter *rate.Limiter
	config  BucketConfig

	// pausedUntil holds a unix-nano deadline set from a marketplace Retry-After
	pausedUntil atomic.Int64

	totalAcquired atomic.Int64
	totalTimedOut atomic.Int64
	totalWaitTime atomic.Int64 // in nanoseconds
}

// BucketStats contains statistics about one bucket
type BucketStats struct {
	Marketplace     integration.MarketplaceCode
	EndpointClass   integration.EndpointClass
	Capacity        int
	RefillPerSecond float64
	// Tokens is the number of tokens currently available
	Tokens        float64
	TotalAcquired int64
	TotalTimedOut int64
	AvgWaitTime   time.Duration
	PausedUntil   *time.Time
}

// Limiter keeps one token bucket per (marketplace, endpoint class).
// Buckets are created lazily from the marketplace limits. Tokens are issued
// in request order.
//
// Thread Safety: Safe for concurrent use.
type Limiter struct {
	mu      sync.RWMutex
	limits  map[integration.MarketplaceCode]MarketplaceLimits
	buckets map[bucketKey]*bucket

	observer WaitObserver
	logger   *zap.Logger
}

// NewLimiter creates a limiter. Marketplaces missing from limits fall back to
// DefaultLimits.
func NewLimiter(limits map[integration.MarketplaceCode]MarketplaceLimits, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	merged := DefaultLimits()
	for code, l := range limits {
		merged[code] = l
	}
	return &Limiter{
		limits:  merged,
		buckets: make(map[bucketKey]*bucket),
		logger:  logger,
	}
}

// SetObserver sets the wait observer
func (l *Limiter) SetObserver(o WaitObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = o
}

func (l *Limiter) bucket(marketplace integration.MarketplaceCode, class integration.EndpointClass) *bucket {
	key := bucketKey{marketplace: marketplace, class: class}

	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	cfg := l.limits[marketplace].bucketFor(class)
	b = &bucket{
		limiter: rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), cfg.Capacity),
		config:  cfg,
	}
	l.buckets[key] = b
	return b
}

func (l *Limiter) acquireTimeout(marketplace integration.MarketplaceCode) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if t := l.limits[marketplace].AcquireTimeout; t > 0 {
		return t
	}
	return DefaultAcquireTimeout
}

// Acquire blocks until a token of the (marketplace, class) bucket is
// available. It fails with integration.ErrRateLimitTimeout when the
// marketplace acquire timeout elapses first, and with the context error when
// ctx is cancelled.
func (l *Limiter) Acquire(ctx context.Context, marketplace integration.MarketplaceCode, class integration.EndpointClass) error {
	if !marketplace.IsValid() {
		return integration.ErrMarketplaceUnknown
	}
	b := l.bucket(marketplace, class)
	timeout := l.acquireTimeout(marketplace)

	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := b.waitPause(waitCtx)
	if err == nil {
		err = b.limiter.Wait(waitCtx)
	}
	wait := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return ctxErr
		}
		b.totalTimedOut.Add(1)
		l.observe(ctx, marketplace, class, wait, true)
		l.logger.Warn("Rate limit token not acquired in time",
			zap.String("marketplace", marketplace.String()),
			zap.String("endpoint_class", string(class)),
			zap.Duration("timeout", timeout),
		)
		return fmt.Errorf("%w: %s/%s after %s", integration.ErrRateLimitTimeout, marketplace, class, timeout)
	}

	b.totalAcquired.Add(1)
	b.totalWaitTime.Add(int64(wait))
	l.observe(ctx, marketplace, class, wait, false)
	return nil
}

// TryAcquire takes a token without blocking
func (l *Limiter) TryAcquire(marketplace integration.MarketplaceCode, class integration.EndpointClass) bool {
	b := l.bucket(marketplace, class)
	if b.paused(time.Now()) || !b.limiter.Allow() {
		return false
	}
	b.totalAcquired.Add(1)
	return true
}

// Pause blocks a bucket for d, used when the marketplace answered 429 with a
// Retry-After hint. A shorter pause never shortens a longer one.
func (l *Limiter) Pause(marketplace integration.MarketplaceCode, class integration.EndpointClass, d time.Duration) {
	if d <= 0 {
		return
	}
	b := l.bucket(marketplace, class)
	until := time.Now().Add(d).UnixNano()
	for {
		cur := b.pausedUntil.Load()
		if cur >= until || b.pausedUntil.CompareAndSwap(cur, until) {
			return
		}
	}
}

func (l *Limiter) observe(ctx context.Context, marketplace integration.MarketplaceCode, class integration.EndpointClass, wait time.Duration, timedOut bool) {
	l.mu.RLock()
	o := l.observer
	l.mu.RUnlock()
	if o != nil {
		o.RecordLimiterWait(ctx, marketplace.String(), string(class), wait, timedOut)
	}
}

// Stats returns statistics of all buckets created so far, ordered by key
func (l *Limiter) Stats() []BucketStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := time.Now()
	out := make([]BucketStats, 0, len(l.buckets))
	for key, b := range l.buckets {
		acquired := b.totalAcquired.Load()
		var avgWait time.Duration
		if acquired > 0 {
			avgWait = time.Duration(b.totalWaitTime.Load() / acquired)
		}
		s := BucketStats{
			Marketplace:     key.marketplace,
			EndpointClass:   key.class,
			Capacity:        b.config.Capacity,
			RefillPerSecond: b.config.RefillPerSecond,
			Tokens:          b.limiter.TokensAt(now),
			TotalAcquired:   acquired,
			TotalTimedOut:   b.totalTimedOut.Load(),
			AvgWaitTime:     avgWait,
		}
		if until := b.pausedUntil.Load(); until > now.UnixNano() {
			t := time.Unix(0, until)
			s.PausedUntil = &t
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Marketplace != out[j].Marketplace {
			return out[i].Marketplace < out[j].Marketplace
		}
		return out[i].EndpointClass < out[j].EndpointClass
	})
	return out
}

func (b *bucket) paused(now time.Time) bool {
	return b.pausedUntil.Load() > now.UnixNano()
}

// waitPause sleeps until a Retry-After pause is over
func (b *bucket) waitPause(ctx context.Context) error {
	until := b.pausedUntil.Load()
	d := time.Until(time.Unix(0, until))
	if until == 0 || d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
