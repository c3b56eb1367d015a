package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meschain/marketsync/internal/interfaces/http/dto"
)

// fakeClock lets tests move the limiter's notion of time
type fakeClock struct{ now time.Time }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestRateLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	t.Helper()
	limiter := NewRateLimiter(limit, window)
	t.Cleanup(limiter.Close)
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	limiter.now = func() time.Time { return clock.now }
	return limiter, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	type step struct {
		key     string
		advance time.Duration
		want    bool
	}
	tests := []struct {
		name  string
		limit int
		steps []step
	}{
		{"burst up to limit", 3, []step{
			{key: "sub:ops", want: true},
			{key: "sub:ops", want: true},
			{key: "sub:ops", want: true},
			{key: "sub:ops", want: false},
		}},
		{"keys are independent", 1, []step{
			{key: "sub:ops", want: true},
			{key: "sub:ops", want: false},
			{key: "ip:10.1.0.7", want: true},
		}},
		{"one token per interval", 2, []step{
			{key: "sub:cron", want: true},
			{key: "sub:cron", want: true},
			{key: "sub:cron", want: false},
			{key: "sub:cron", advance: 30 * time.Second, want: true},
			{key: "sub:cron", want: false},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, clock := newTestRateLimiter(t, tt.limit, time.Minute)
			for i, s := range tt.steps {
				clock.advance(s.advance)
				assert.Equal(t, s.want, limiter.Allow(s.key), "step %d", i)
			}
		})
	}
}

func TestRateLimiter_RemainingAndEviction(t *testing.T) {
	limiter, clock := newTestRateLimiter(t, 4, time.Minute)

	assert.Equal(t, 4, limiter.Remaining("sub:ops"), "unknown keys have a full bucket")
	limiter.Allow("sub:ops")
	assert.Equal(t, 3, limiter.Remaining("sub:ops"))

	clock.advance(2*time.Minute + time.Second)
	limiter.cleanup()
	limiter.mu.Lock()
	assert.Empty(t, limiter.clients)
	limiter.mu.Unlock()
}

func TestRateLimiter_NonPositiveSettings(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	defer limiter.Close()
	assert.Equal(t, 1, limiter.limit)
	assert.Equal(t, time.Minute, limiter.window)
	assert.Equal(t, "60", limiter.retryAfter())
}

func TestRateLimiter_Concurrent(t *testing.T) {
	limiter, _ := newTestRateLimiter(t, 50, time.Minute)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("sub:bulk") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, allowed.Load())
}

func TestRateLimitByKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, _ := newTestRateLimiter(t, 2, time.Minute)

	engine := gin.New()
	engine.Use(RequestID(), RateLimitByKey(limiter, func(c *gin.Context) string {
		return c.GetHeader("X-Client")
	}))
	engine.GET("/api/v1/sync/stats", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/stats", nil)
		req.Header.Set("X-Client", client)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	w := call("ops")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, http.StatusNoContent, call("ops").Code)

	w = call("ops")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	assert.Equal(t, http.StatusNoContent, call("reporting").Code)
}
