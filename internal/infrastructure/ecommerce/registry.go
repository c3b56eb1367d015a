package ecommerce

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// constructors creates an adapter per marketplace
var constructors = map[integration.MarketplaceCode]func(Config, Deps) (integration.MarketplaceAdapter, error){
	integration.MarketplaceTrendyol: func(c Config, d Deps) (integration.MarketplaceAdapter, error) {
		return NewTrendyolAdapter(c, d)
	},
	integration.MarketplaceAmazon: func(c Config, d Deps) (integration.MarketplaceAdapter, error) {
		return NewAmazonAdapter(c, d)
	},
	integration.MarketplaceN11: func(c Config, d Deps) (integration.MarketplaceAdapter, error) {
		return NewN11Adapter(c, d)
	},
	integration.MarketplaceEbay: func(c Config, d Deps) (integration.MarketplaceAdapter, error) {
		return NewEbayAdapter(c, d)
	},
	integration.MarketplaceHepsiburada: func(c Config, d Deps) (integration.MarketplaceAdapter, error) {
		return NewHepsiburadaAdapter(c, d)
	},
	integration.MarketplaceOzon: func(c Config, d Deps) (integration.MarketplaceAdapter, error) {
		return NewOzonAdapter(c, d)
	},
}

// NewAdapter creates the adapter for cfg.Marketplace
func NewAdapter(cfg Config, deps Deps) (integration.MarketplaceAdapter, error) {
	ctor, ok := constructors[cfg.Marketplace]
	if !ok {
		return nil, fmt.Errorf("%w: %q", integration.ErrMarketplaceUnknown, cfg.Marketplace)
	}
	return ctor(cfg, deps)
}

// BuildRegistry creates one adapter per configured marketplace. Any invalid
// configuration fails the whole build so a misconfigured marketplace is
// noticed at start-up.
func BuildRegistry(configs map[integration.MarketplaceCode]Config, deps Deps) (*integration.AdapterRegistry, error) {
	codes := make([]integration.MarketplaceCode, 0, len(configs))
	for code := range configs {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	adapters := make([]integration.MarketplaceAdapter, 0, len(codes))
	for _, code := range codes {
		cfg := configs[code]
		cfg.Marketplace = code
		adapter, err := NewAdapter(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to configure %s: %w", code.DisplayName(), err)
		}
		if deps.Logger != nil {
			deps.Logger.Info("Marketplace adapter configured",
				zap.String("marketplace", code.String()),
				zap.Bool("sandbox", cfg.Sandbox),
			)
		}
		adapters = append(adapters, adapter)
	}
	return integration.NewAdapterRegistry(adapters...), nil
}
