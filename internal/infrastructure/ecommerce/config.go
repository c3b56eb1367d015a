package ecommerce

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// Config holds the credentials and endpoints of one marketplace account.
// Which credential fields are required depends on the marketplace.
type Config struct {
	Marketplace integration.MarketplaceCode `mapstructure:"-" validate:"required"`
	Sandbox     bool                        `mapstructure:"sandbox"`

	// APIKey is the Trendyol API key, N11 app key, Ozon Api-Key, eBay or
	// Amazon LWA client id. Hepsiburada uses MerchantID instead.
	APIKey string `mapstructure:"api_key"`
	// APISecret is the matching secret
	APISecret string `mapstructure:"api_secret"`
	// SupplierID is the Trendyol supplier id, the Hepsiburada merchant id,
	// the Ozon Client-Id or the Amazon selling partner id
	SupplierID string `mapstructure:"supplier_id"`
	// MarketplaceID is the Amazon marketplace id or the eBay marketplace id
	MarketplaceID string `mapstructure:"marketplace_id"`
	// RefreshToken is the long-lived Amazon LWA or eBay OAuth refresh token
	RefreshToken string `mapstructure:"refresh_token"`
	// WebhookSecret signs inbound notifications
	WebhookSecret string `mapstructure:"webhook_secret"`

	// BaseURL overrides the API base URL of the environment
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	// AuthURL overrides the token endpoint of OAuth marketplaces
	AuthURL string `mapstructure:"auth_url" validate:"omitempty,url"`

	// Timeout bounds a single HTTP call
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
	// PageSize is the page size used for product and order listing
	PageSize int `mapstructure:"page_size" validate:"gte=0,lte=200"`
	// OrderLookback is how far back a poll without a watermark starts
	OrderLookback time.Duration `mapstructure:"order_lookback" validate:"gte=0"`
	// Currency is the listing currency
	Currency string `mapstructure:"currency" validate:"omitempty,len=3"`
}

// Defaults
const (
	DefaultTimeout       = 30 * time.Second
	DefaultPageSize      = 50
	DefaultOrderLookback = 14 * 24 * time.Hour
)

// Configuration errors
var (
	ErrConfigMissingAPIKey        = errors.New("ecommerce: api key is required")
	ErrConfigMissingAPISecret     = errors.New("ecommerce: api secret is required")
	ErrConfigMissingSupplierID    = errors.New("ecommerce: supplier id is required")
	ErrConfigMissingMarketplaceID = errors.New("ecommerce: marketplace id is required")
	ErrConfigMissingRefreshToken  = errors.New("ecommerce: refresh token is required")
)

var validate = validator.New()

// requirements lists the credential fields each marketplace needs
var requirements = map[integration.MarketplaceCode][]struct {
	field func(*Config) string
	err   error
}{
	integration.MarketplaceTrendyol: {
		{func(c *Config) string { return c.APIKey }, ErrConfigMissingAPIKey},
		{func(c *Config) string { return c.APISecret }, ErrConfigMissingAPISecret},
		{func(c *Config) string { return c.SupplierID }, ErrConfigMissingSupplierID},
	},
	integration.MarketplaceAmazon: {
		{func(c *Config) string { return c.APIKey }, ErrConfigMissingAPIKey},
		{func(c *Config) string { return c.APISecret }, ErrConfigMissingAPISecret},
		{func(c *Config) string { return c.RefreshToken }, ErrConfigMissingRefreshToken},
		{func(c *Config) string { return c.SupplierID }, ErrConfigMissingSupplierID},
		{func(c *Config) string { return c.MarketplaceID }, ErrConfigMissingMarketplaceID},
	},
	integration.MarketplaceN11: {
		{func(c *Config) string { return c.APIKey }, ErrConfigMissingAPIKey},
		{func(c *Config) string { return c.APISecret }, ErrConfigMissingAPISecret},
	},
	integration.MarketplaceEbay: {
		{func(c *Config) string { return c.APIKey }, ErrConfigMissingAPIKey},
		{func(c *Config) string { return c.APISecret }, ErrConfigMissingAPISecret},
		{func(c *Config) string { return c.RefreshToken }, ErrConfigMissingRefreshToken},
	},
	integration.MarketplaceHepsiburada: {
		{func(c *Config) string { return c.SupplierID }, ErrConfigMissingSupplierID},
		{func(c *Config) string { return c.APISecret }, ErrConfigMissingAPISecret},
	},
	integration.MarketplaceOzon: {
		{func(c *Config) string { return c.SupplierID }, ErrConfigMissingSupplierID},
		{func(c *Config) string { return c.APIKey }, ErrConfigMissingAPIKey},
	},
}

// Validate checks the credentials required by the marketplace and fills in
// defaults
func (c *Config) Validate() error {
	if !c.Marketplace.IsValid() {
		return fmt.Errorf("%w: %q", integration.ErrMarketplaceUnknown, c.Marketplace)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%s config: %w", c.Marketplace, err)
	}
	for _, r := range requirements[c.Marketplace] {
		if strings.TrimSpace(r.field(c)) == "" {
			return fmt.Errorf("%s: %w", c.Marketplace, r.err)
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.OrderLookback <= 0 {
		c.OrderLookback = DefaultOrderLookback
	}
	return nil
}

// baseURL returns BaseURL or the production/sandbox default
func (c *Config) baseURL(production, sandbox string) string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.Sandbox {
		return sandbox
	}
	return production
}

// authURL returns AuthURL or the production/sandbox default
func (c *Config) authURL(production, sandbox string) string {
	if c.AuthURL != "" {
		return c.AuthURL
	}
	if c.Sandbox {
		return sandbox
	}
	return production
}

// currency returns Currency or def
func (c *Config) currency(def string) string {
	if c.Currency != "" {
		return strings.ToUpper(c.Currency)
	}
	return def
}
