package ecommerce

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meschain/marketsync/internal/domain/integration"
)

func TestTokenSource_CachesUntilSkew(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	src := newTokenSource(func(ctx context.Context) (string, time.Duration, error) {
		calls++
		return "tok", 10 * time.Minute, nil
	})
	src.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		token, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", token)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, now.Add(10*time.Minute), src.Expiry())

	// inside the refresh skew the token is renewed
	now = now.Add(9*time.Minute + 30*time.Second)
	_, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTokenSource_Invalidate(t *testing.T) {
	calls := 0
	src := newTokenSource(func(ctx context.Context) (string, time.Duration, error) {
		calls++
		return "tok", time.Hour, nil
	})
	_, _ = src.Token(context.Background())
	src.Invalidate()
	assert.True(t, src.Expiry().IsZero())
	_, _ = src.Token(context.Background())
	assert.Equal(t, 2, calls)
}

func TestTokenSource_Errors(t *testing.T) {
	failing := newTokenSource(func(ctx context.Context) (string, time.Duration, error) {
		return "", 0, integration.ErrAuth
	})
	_, err := failing.Token(context.Background())
	assert.ErrorIs(t, err, integration.ErrAuth)

	empty := newTokenSource(func(ctx context.Context) (string, time.Duration, error) {
		return "", time.Hour, nil
	})
	_, err = empty.Token(context.Background())
	assert.Error(t, err)
}

func TestAsAuthError(t *testing.T) {
	grant := &integration.RemoteError{StatusCode: http.StatusBadRequest, Err: integration.ErrValidation}
	assert.ErrorIs(t, asAuthError(grant), integration.ErrAuth)

	limited := &integration.RemoteError{StatusCode: http.StatusTooManyRequests, Err: integration.ErrRateLimited}
	assert.ErrorIs(t, asAuthError(limited), integration.ErrRateLimited)

	server := &integration.RemoteError{StatusCode: http.StatusBadGateway, Err: integration.ErrTransientNetwork}
	assert.ErrorIs(t, asAuthError(server), integration.ErrTransientNetwork)

	plain := errors.New("boom")
	assert.Equal(t, plain, asAuthError(plain))
}
