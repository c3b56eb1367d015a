package ecommerce

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// statusTable maps marketplace order states onto OrderStatus
type statusTable map[string]integration.OrderStatus

// lookup returns the normalized status; unknown states yield "" which the
// order aggregate ignores
func (t statusTable) lookup(raw string) integration.OrderStatus {
	if s, ok := t[raw]; ok {
		return s
	}
	if s, ok := t[strings.ToLower(raw)]; ok {
		return s
	}
	return ""
}

// reverse returns the marketplace state for a local status
func (t statusTable) reverse(status integration.OrderStatus) (string, bool) {
	for raw, s := range t {
		if s == status {
			return raw, true
		}
	}
	return "", false
}

// parseDecimal parses a decimal, returning zero for empty or invalid input
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// fromMillis converts a unix millisecond timestamp
func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// parseTime parses RFC3339 with or without fractional seconds
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// orderWindow decodes an order cursor. A cursor without watermark starts
// lookback before now.
func orderWindow(cursor string, lookback time.Duration, now time.Time) integration.OrderCursor {
	c := integration.ParseOrderCursor(cursor)
	if c.Since.IsZero() {
		c.Since = now.Add(-lookback).UTC().Truncate(time.Second)
	}
	return c
}

// nextOrderCursor returns the cursor of the following page, "" on the last one
func nextOrderCursor(c integration.OrderCursor, hasMore bool, next string) string {
	if !hasMore || next == "" {
		return ""
	}
	return c.WithPage(next).String()
}

// atoiDefault parses a page number, returning def for empty or invalid input
func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// listingBarcode returns the barcode a listing is keyed by, the SKU when the
// product carries none
func listingBarcode(p *integration.Product) string {
	if p.Barcode != "" {
		return p.Barcode
	}
	return p.SKU
}
