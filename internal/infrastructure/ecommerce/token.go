package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/meschain/marketsync/internal/domain/integration"
)

// tokenRefreshSkew refreshes an access token this long before it expires
const tokenRefreshSkew = time.Minute

// fetchTokenFunc obtains a fresh access token and its lifetime
type fetchTokenFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// tokenSource caches an OAuth access token and refreshes it before expiry.
// Concurrent callers share one refresh.
type tokenSource struct {
	fetch fetchTokenFunc
	now   func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(fetch fetchTokenFunc) *tokenSource {
	return &tokenSource{fetch: fetch, now: time.Now}
}

// Token returns a valid access token, refreshing it if needed
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(tokenRefreshSkew).Before(s.expires) {
		return s.token, nil
	}
	token, ttl, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("token endpoint returned an empty access token")
	}
	s.token = token
	s.expires = s.now().Add(ttl)
	return token, nil
}

// Expiry returns the expiry of the cached token
func (s *tokenSource) Expiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expires
}

// Invalidate drops the cached token
func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
}

// asAuthError reclassifies a rejected token request as an authentication
// failure. Token endpoints answer 400 invalid_grant for revoked refresh tokens.
func asAuthError(err error) error {
	var remoteErr *integration.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.StatusCode >= 400 && remoteErr.StatusCode < 500 &&
		remoteErr.StatusCode != http.StatusTooManyRequests {
		remoteErr.Err = integration.ErrAuth
	}
	return err
}
