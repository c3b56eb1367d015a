package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, l)

	path := filepath.Join(t.TempDir(), "sync.log")
	l, err = New(Config{Level: "debug", Format: "json", Output: path, Service: "marketsync", Env: "test"})
	require.NoError(t, err)
	l.Info("written")
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
	assert.Equal(t, "written", entry["msg"])
	assert.Equal(t, "marketsync", entry["service"])
	assert.Equal(t, "test", entry["env"])
	assert.Contains(t, entry, "time")

	_, err = New(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, _ := WithRequestID(context.Background(), base, "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()

	FromContext(ctx).Info("hello")
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
}

func TestFromContext_NoLogger(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithSyncJob(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, _ := WithSyncJob(context.Background(), zap.New(core), "job-1", "TRENDYOL", "stock", 2)

	FromContext(ctx).Info("running")
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "job-1", fields["job_id"])
	assert.Equal(t, "TRENDYOL", fields["marketplace"])
	assert.Equal(t, "stock", fields["job_type"])
	assert.EqualValues(t, 2, fields["attempt"])
}

func TestAccessLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", "req-9"); c.Next() })
	r.Use(AccessLog(zap.New(core)), Recovery(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/webhooks/:marketplace", func(c *gin.Context) {
		assert.Equal(t, "req-9", RequestID(c.Request.Context()))
		FromGin(c).Info("inside")
		c.Status(http.StatusAccepted)
	})
	r.GET("/api/v1/sync/jobs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/api/v1/sync/stats", func(c *gin.Context) { panic("boom") })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPost, "/webhooks/OZON", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/sync/jobs/7", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/sync/stats", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	inside := logs.FilterMessage("inside").All()
	require.Len(t, inside, 1)
	assert.Equal(t, "req-9", inside[0].ContextMap()["request_id"])

	panics := logs.FilterMessage("Handler panicked").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "req-9", panics[0].ContextMap()["request_id"])

	requests := logs.FilterMessage("HTTP request").All()
	require.Len(t, requests, 4)
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, want := range wantLevels {
		assert.Equal(t, want, requests[i].Level, "request %d", i)
	}
	webhook := requests[1].ContextMap()
	assert.Equal(t, "/webhooks/:marketplace", webhook["route"])
	assert.Equal(t, "OZON", webhook["marketplace"])
	assert.EqualValues(t, http.StatusInternalServerError, requests[3].ContextMap()["status"])
}

func TestFromGin_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, FromGin(c))

	core, logs := observer.New(zapcore.InfoLevel)
	c.Set("request_id", "req-3")
	FromGinOr(c, zap.New(core)).Info("fallback")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-3", logs.All()[0].ContextMap()["request_id"])
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info, 10*time.Millisecond)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(ctx, time.Now(), sql, nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	gl.Trace(ctx, time.Now(), sql, errors.New("disk I/O error"))
	gl.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)

	// record not found is logged as a plain query
	assert.Equal(t, 2, logs.FilterMessage("SQL").Len())
	assert.Equal(t, 1, logs.FilterMessage("Slow SQL").Len())
	assert.Equal(t, 1, logs.FilterMessage("SQL error").Len())

	warnOnly := gl.LogMode(gormlogger.Warn)
	before := logs.Len()
	warnOnly.Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, before, logs.Len(), "fast statements are not logged at warn")

	silent := gl.LogMode(gormlogger.Silent)
	before = logs.Len()
	silent.Trace(ctx, time.Now(), sql, errors.New("ignored"))
	assert.Equal(t, before, logs.Len())
}

func TestGormLogger_UsesContextLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.DebugLevel)
	jobCore, jobLogs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(baseCore), gormlogger.Info, 0)

	ctx, _ := WithSyncJob(context.Background(), zap.New(jobCore), "job-1", "N11", "stock", 1)
	gl.Trace(ctx, time.Now(), func() (string, int64) { return "UPDATE marketplace_links", 3 }, nil)
	gl.Warn(ctx, "slow pool: %d waiting", 4)

	assert.Zero(t, baseLogs.Len())
	require.Equal(t, 2, jobLogs.Len())
	entry := jobLogs.All()[0]
	assert.Equal(t, "gorm", entry.LoggerName)
	assert.Equal(t, "N11", entry.ContextMap()["marketplace"])
	assert.Equal(t, "slow pool: 4 waiting", jobLogs.All()[1].Message)
}

func TestParseGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, ParseGormLevel("silent"))
	assert.Equal(t, gormlogger.Error, ParseGormLevel("error"))
	assert.Equal(t, gormlogger.Info, ParseGormLevel("debug"))
	assert.Equal(t, gormlogger.Silent, ParseGormLevel(" OFF "))
	assert.Equal(t, gormlogger.Warn, ParseGormLevel("unknown"))
}
