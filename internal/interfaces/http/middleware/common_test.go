package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/api/v1/sync/logs", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"marketplace trace id is kept", "ty-7f3a9c01", true},
		{"no header", "", false},
		{"tab inside id", "ty\t7f3a", false},
		{"space inside id", "hb 1234", false},
		{"oversized id", strings.Repeat("n", maxRequestIDLen+1), false},
		{"id at max length", strings.Repeat("z", maxRequestIDLen), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/logs", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			got := w.Body.String()
			assert.Equal(t, got, w.Header().Get(RequestIDHeader), "header echoes the stored id")
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
				return
			}
			_, err := uuid.Parse(got)
			require.NoError(t, err, "replacement id for %q", tt.incoming)
		})
	}
}

func TestSecure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Secure())
	engine.GET("/api/v1/sync/stats", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"queued": 0}) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/stats", nil))

	for _, kv := range secureHeaders {
		assert.Equal(t, kv[1], w.Header().Get(kv[0]), kv[0])
	}
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")
}

func TestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{"bounded", 80 * time.Millisecond, true},
		{"zero leaves the context alone", 0, false},
		{"negative leaves the context alone", -time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				deadline time.Time
				ok       bool
			)
			engine := gin.New()
			engine.Use(Timeout(tt.timeout))
			engine.POST("/api/v1/sync/jobs", func(c *gin.Context) {
				deadline, ok = c.Request.Context().Deadline()
				c.Status(http.StatusAccepted)
			})

			start := time.Now()
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/jobs", nil))

			assert.Equal(t, http.StatusAccepted, w.Code)
			assert.Equal(t, tt.wantDeadline, ok)
			if tt.wantDeadline {
				assert.WithinDuration(t, start.Add(tt.timeout), deadline, 50*time.Millisecond)
			}
		})
	}
}
