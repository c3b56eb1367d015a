package ratelimit

import (
	"time"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// BucketConfig configures one token bucket
type BucketConfig struct {
	// Capacity is the number of tokens the bucket holds (the burst)
	Capacity int `mapstructure:"capacity" json:"capacity"`
	// RefillPerSecond is the rate tokens are added at
	RefillPerSecond float64 `mapstructure:"refill_per_second" json:"refill_per_second"`
}

// IsZero returns true if the bucket is unconfigured
func (c BucketConfig) IsZero() bool {
	return c.Capacity == 0 && c.RefillPerSecond == 0
}

// normalized fills in minimums so a bucket always issues tokens
func (c BucketConfig) normalized() BucketConfig {
	if c.Capacity <= 0 {
		c.Capacity = 1
	}
	if c.RefillPerSecond <= 0 {
		c.RefillPerSecond = 1
	}
	return c
}

// MarketplaceLimits is the call budget of one marketplace
type MarketplaceLimits struct {
	// Default applies to endpoint classes without an override
	Default BucketConfig `mapstructure:"default" json:"default"`
	// Classes overrides the bucket of individual endpoint classes
	Classes map[integration.EndpointClass]BucketConfig `mapstructure:"classes" json:"classes"`
	// AcquireTimeout bounds how long Acquire waits for a token
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" json:"acquire_timeout"`
}

// bucketFor returns the effective bucket of an endpoint class
func (l MarketplaceLimits) bucketFor(class integration.EndpointClass) BucketConfig {
	if c, ok := l.Classes[class]; ok && !c.IsZero() {
		return c.normalized()
	}
	return l.Default.normalized()
}

// DefaultAcquireTimeout applies when a marketplace sets none
const DefaultAcquireTimeout = 30 * time.Second

// DefaultLimits returns the documented call budgets of the supported
// marketplaces, conservatively rounded down
func DefaultLimits() map[integration.MarketplaceCode]MarketplaceLimits {
	return map[integration.MarketplaceCode]MarketplaceLimits{
		// 50 requests per 10 seconds per endpoint
		integration.MarketplaceTrendyol: {
			Default:        BucketConfig{Capacity: 50, RefillPerSecond: 5},
			AcquireTimeout: DefaultAcquireTimeout,
		},
		// SP-API usage plans differ per operation
		integration.MarketplaceAmazon: {
			Default: BucketConfig{Capacity: 10, RefillPerSecond: 1},
			Classes: map[integration.EndpointClass]BucketConfig{
				integration.EndpointOrderRead:    {Capacity: 20, RefillPerSecond: 0.0167},
				integration.EndpointProductWrite: {Capacity: 10, RefillPerSecond: 5},
				integration.EndpointStockPrice:   {Capacity: 10, RefillPerSecond: 5},
				integration.EndpointAuth:         {Capacity: 5, RefillPerSecond: 1},
			},
			AcquireTimeout: time.Minute,
		},
		integration.MarketplaceN11: {
			Default:        BucketConfig{Capacity: 10, RefillPerSecond: 2},
			AcquireTimeout: DefaultAcquireTimeout,
		},
		// 5000 calls per day on most Sell APIs
		integration.MarketplaceEbay: {
			Default: BucketConfig{Capacity: 50, RefillPerSecond: 0.05},
			Classes: map[integration.EndpointClass]BucketConfig{
				integration.EndpointAuth: {Capacity: 5, RefillPerSecond: 0.1},
			},
			AcquireTimeout: time.Minute,
		},
		integration.MarketplaceHepsiburada: {
			Default:        BucketConfig{Capacity: 20, RefillPerSecond: 5},
			AcquireTimeout: DefaultAcquireTimeout,
		},
		integration.MarketplaceOzon: {
			Default:        BucketConfig{Capacity: 50, RefillPerSecond: 10},
			AcquireTimeout: DefaultAcquireTimeout,
		},
	}
}
