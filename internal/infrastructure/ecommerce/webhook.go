package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// Webhook signature headers per marketplace
const (
	HeaderTrendyolSignature    = "X-Trendyol-Signature"
	HeaderAmazonSignature      = "X-Amz-Sns-Signature"
	HeaderN11Signature         = "X-N11-Signature"
	HeaderEbaySignature        = "X-Ebay-Signature"
	HeaderHepsiburadaSignature = "X-Hb-Signature"
	HeaderOzonSignature        = "X-Ozon-Signature"
	// HeaderDeliveryID carries the delivery id when the marketplace sends one
	HeaderDeliveryID = "X-Delivery-Id"
)

// Sign returns the hex HMAC-SHA256 of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifySignature checks the HMAC-SHA256 of body against the header value.
// Hex and base64 encodings are accepted, with an optional "sha256=" prefix.
// The comparison is constant time.
func verifySignature(marketplace integration.MarketplaceCode, secret string, headers http.Header, header string, body []byte) error {
	if secret == "" {
		return fmt.Errorf("%w: %s webhook secret not configured", integration.ErrSecurity, marketplace)
	}
	got := strings.TrimSpace(headers.Get(header))
	if got == "" {
		return fmt.Errorf("%w: %s missing %s header", integration.ErrSecurity, marketplace, header)
	}
	got = strings.TrimPrefix(got, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	var provided []byte
	if b, err := hex.DecodeString(got); err == nil {
		provided = b
	} else if b, err := base64.StdEncoding.DecodeString(got); err == nil {
		provided = b
	}
	if provided == nil || !hmac.Equal(provided, expected) {
		return fmt.Errorf("%w: %s signature mismatch", integration.ErrSecurity, marketplace)
	}
	return nil
}

// deliveryID returns the delivery id sent by the marketplace, or a digest of
// the body so a redelivered notification maps to the same id
func deliveryID(headers http.Header, native string, body []byte) string {
	if native != "" {
		return native
	}
	if id := headers.Get(HeaderDeliveryID); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:16])
}

// invalidPayload wraps a malformed webhook body
func invalidPayload(marketplace integration.MarketplaceCode, err error) error {
	return fmt.Errorf("%w: %s webhook payload: %v", integration.ErrValidation, marketplace, err)
}
