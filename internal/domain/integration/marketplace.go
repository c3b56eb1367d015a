package integration

import (
	"strings"
)

// ---------------------------------------------------------------------------
// MarketplaceCode identifies an external marketplace
// ---------------------------------------------------------------------------

// MarketplaceCode identifies an external marketplace
type MarketplaceCode string

const (
	// MarketplaceTrendyol represents Trendyol (Turkey)
	MarketplaceTrendyol MarketplaceCode = "TRENDYOL"
	// MarketplaceAmazon represents Amazon Selling Partner API
	MarketplaceAmazon MarketplaceCode = "AMAZON"
	// MarketplaceN11 represents N11 (Turkey)
	MarketplaceN11 MarketplaceCode = "N11"
	// MarketplaceEbay represents eBay Sell APIs
	MarketplaceEbay MarketplaceCode = "EBAY"
	// MarketplaceHepsiburada represents Hepsiburada (Turkey)
	MarketplaceHepsiburada MarketplaceCode = "HEPSIBURADA"
	// MarketplaceOzon represents Ozon Seller API (Russia)
	MarketplaceOzon MarketplaceCode = "OZON"
)

// AllMarketplaces returns every supported marketplace in a stable order
func AllMarketplaces() []MarketplaceCode {
	return []MarketplaceCode{
		MarketplaceTrendyol,
		MarketplaceAmazon,
		MarketplaceN11,
		MarketplaceEbay,
		MarketplaceHepsiburada,
		MarketplaceOzon,
	}
}

// IsValid returns true if the marketplace code is supported
func (c MarketplaceCode) IsValid() bool {
	switch c {
	case MarketplaceTrendyol, MarketplaceAmazon, MarketplaceN11,
		MarketplaceEbay, MarketplaceHepsiburada, MarketplaceOzon:
		return true
	default:
		return false
	}
}

// String returns the string representation of MarketplaceCode
func (c MarketplaceCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the marketplace
func (c MarketplaceCode) DisplayName() string {
	switch c {
	case MarketplaceTrendyol:
		return "Trendyol"
	case MarketplaceAmazon:
		return "Amazon"
	case MarketplaceN11:
		return "N11"
	case MarketplaceEbay:
		return "eBay"
	case MarketplaceHepsiburada:
		return "Hepsiburada"
	case MarketplaceOzon:
		return "Ozon"
	default:
		return string(c)
	}
}

// ParseMarketplaceCode parses a marketplace identifier case-insensitively.
// "trendyol", "Trendyol" and "TRENDYOL" all resolve to MarketplaceTrendyol.
func ParseMarketplaceCode(s string) (MarketplaceCode, error) {
	code := MarketplaceCode(strings.ToUpper(strings.TrimSpace(s)))
	if !code.IsValid() {
		return "", ErrMarketplaceUnknown
	}
	return code, nil
}

// ---------------------------------------------------------------------------
// EndpointClass groups marketplace endpoints that share a call budget
// ---------------------------------------------------------------------------

// EndpointClass groups marketplace endpoints that share a rate limit budget
type EndpointClass string

const (
	EndpointAuth         EndpointClass = "auth"
	EndpointProductRead  EndpointClass = "product_read"
	EndpointProductWrite EndpointClass = "product_write"
	EndpointStockPrice   EndpointClass = "stock_price"
	EndpointOrderRead    EndpointClass = "order_read"
	EndpointOrderWrite   EndpointClass = "order_write"
)

// AllEndpointClasses returns every endpoint class
func AllEndpointClasses() []EndpointClass {
	return []EndpointClass{
		EndpointAuth,
		EndpointProductRead,
		EndpointProductWrite,
		EndpointStockPrice,
		EndpointOrderRead,
		EndpointOrderWrite,
	}
}

// IsValid returns true if the endpoint class is known
func (e EndpointClass) IsValid() bool {
	switch e {
	case EndpointAuth, EndpointProductRead, EndpointProductWrite,
		EndpointStockPrice, EndpointOrderRead, EndpointOrderWrite:
		return true
	default:
		return false
	}
}
