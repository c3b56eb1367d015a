package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestNewProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(ctx, Config{Enabled: false, ServiceName: "marketsync"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Meter("test"))
	assert.NotNil(t, p.Tracer("test"))
	assert.Error(t, p.EnableSpanProfiles())
	assert.NoError(t, p.ForceFlush(ctx))
	assert.NoError(t, p.Shutdown(ctx))

	base := zap.NewNop()
	assert.Same(t, base, p.BridgeLogger(base, zapcore.InfoLevel))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"always", 1, "AlwaysOnSampler"},
		{"never", 0, "AlwaysOffSampler"},
		{"negative", -0.5, "AlwaysOffSampler"},
		{"ratio", 0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, sampler(tt.ratio).Description(), tt.want)
		})
	}
}

func TestInstruments(t *testing.T) {
	ctx := context.Background()
	in := NewInstruments(noop.NewMeterProvider().Meter("test"))

	counter := in.Counter("msync_test_total", "test counter", "{calls}")
	counter.Inc(ctx, AttrMarketplace.String("N11"))
	counter.Add(ctx, 3)
	counter.Add(ctx, -1)

	hist := in.Histogram("msync_test_seconds", "test histogram", "s", LimiterWaitBuckets)
	hist.Seconds(ctx, 150*time.Millisecond, AttrEndpointClass.String("order_read"))
	hist.Since(ctx, time.Now())

	in.Gauge("msync_test_depth", "test gauge", "{jobs}").Set(ctx, 7)

	done := in.InFlight("msync_test_active", "test in flight", "{jobs}").Begin(ctx)
	done()

	assert.NoError(t, in.Err())
}

func TestInstruments_NilMeterAndNilInstruments(t *testing.T) {
	ctx := context.Background()
	in := NewInstruments(nil)
	assert.NotNil(t, in.Counter("msync_nil_total", "", ""))
	assert.NoError(t, in.Err())

	var (
		c *Counter
		h *Histogram
		g *Gauge
		f *InFlight
	)
	assert.NotPanics(t, func() {
		c.Inc(ctx)
		h.Record(ctx, 1)
		g.Set(ctx, 1)
		f.Begin(ctx)()
	})
}

func TestAttributeKeys(t *testing.T) {
	assert.Equal(t, "marketplace", string(AttrMarketplace))
	assert.Equal(t, "endpoint_class", string(AttrEndpointClass))
	assert.Equal(t, "operation", string(AttrOperation))
	assert.Equal(t, "error_kind", string(AttrErrorKind))
	assert.Equal(t, "job_type", string(AttrJobType))
	assert.Equal(t, "job_state", string(AttrJobState))
	assert.Equal(t, "outcome", string(AttrOutcome))
	assert.Equal(t, "sync_status", string(AttrSyncStatus))
	assert.Equal(t, "http.status_code", string(AttrHTTPStatusCode))
}

func TestBucketsAscending(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"http":    HTTPDurationBuckets,
		"webhook": WebhookSizeBuckets,
		"limiter": LimiterWaitBuckets,
		"job":     JobDurationBuckets,
	} {
		for i := 1; i < len(buckets); i++ {
			assert.Greater(t, buckets[i], buckets[i-1], "%s buckets not ascending at %d", name, i)
		}
	}
}

func TestStartMarketplaceSpan(t *testing.T) {
	recorder := withSpanRecorder(t)

	ctx, span := StartMarketplaceSpan(context.Background(), "HEPSIBURADA", "stock_price", "update_stock_price")
	assert.NotEmpty(t, TraceID(ctx))
	EndSpan(span, errors.New("status 503"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "marketplace.update_stock_price", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), AttrMarketplace.String("HEPSIBURADA"))
	assert.Len(t, spans[0].Events(), 1)
}

func TestStartJobSpan(t *testing.T) {
	recorder := withSpanRecorder(t)

	_, span := StartJobSpan(context.Background(), "OZON", "order", 2)
	EndSpan(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sync.order", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestProfiler_Disabled(t *testing.T) {
	p, err := StartProfiler(ProfilerConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Stop())

	_, err = StartProfiler(ProfilerConfig{Enabled: true}, nil)
	assert.Error(t, err)
}

func TestWithSyncLabels(t *testing.T) {
	called := false
	WithSyncLabels(context.Background(), "TRENDYOL", "stock", func(ctx context.Context) {
		called = ctx != nil
	})
	assert.True(t, called)
}

type traceRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestInstrumentDB(t *testing.T) {
	recorder := withSpanRecorder(t)
	core, logs := observer.New(zapcore.WarnLevel)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&traceRow{}))

	err = InstrumentDB(db, DBTracingConfig{DBName: "marketsync", SlowQueryThreshold: time.Nanosecond}, zap.New(core))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&traceRow{Name: "a"}).Error)
	var rows []traceRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)

	assert.NotEmpty(t, recorder.Ended())
	assert.GreaterOrEqual(t, logs.FilterMessage("Slow query detected").Len(), 2)
}
