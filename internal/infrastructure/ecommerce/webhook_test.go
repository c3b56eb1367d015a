package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meschain/marketsync/internal/domain/integration"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":42}`)
	secret := "s3cret"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	b64 := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name      string
		secret    string
		signature string
		wantErr   bool
	}{
		{"hex", secret, Sign(secret, body), false},
		{"hex with prefix", secret, "sha256=" + Sign(secret, body), false},
		{"base64", secret, b64, false},
		{"wrong secret", secret, Sign("other", body), true},
		{"missing header", secret, "", true},
		{"not configured", "", Sign(secret, body), true},
		{"garbage", secret, "!!!", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.signature != "" {
				headers.Set(HeaderN11Signature, tt.signature)
			}
			err := verifySignature(integration.MarketplaceN11, tt.secret, headers, HeaderN11Signature, body)
			if tt.wantErr {
				assert.ErrorIs(t, err, integration.ErrSecurity)
				assert.Equal(t, integration.ErrorKindSecurity, integration.Classify(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	headers := http.Header{}
	headers.Set(HeaderOzonSignature, Sign("k", []byte(`{"a":1}`)))
	err := verifySignature(integration.MarketplaceOzon, "k", headers, HeaderOzonSignature, []byte(`{"a":2}`))
	assert.ErrorIs(t, err, integration.ErrSecurity)
}

func TestDeliveryID(t *testing.T) {
	body := []byte(`{"id":1}`)
	assert.Equal(t, "native", deliveryID(http.Header{}, "native", body))

	headers := http.Header{}
	headers.Set(HeaderDeliveryID, "hdr-1")
	assert.Equal(t, "hdr-1", deliveryID(headers, "", body))

	digest := deliveryID(http.Header{}, "", body)
	assert.True(t, strings.HasPrefix(digest, "sha256:"))
	assert.Equal(t, digest, deliveryID(http.Header{}, "", body), "redelivery maps to the same id")
	assert.NotEqual(t, digest, deliveryID(http.Header{}, "", []byte(`{"id":2}`)))
}
