package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Instruments creates instruments on one meter and collects creation errors,
// so a component declares all of its instruments and checks Err once.
// Instruments that fail to register fall back to no-op instruments.
type Instruments struct {
	meter metric.Meter
	errs  []error
}

// NewInstruments returns a builder on meter; a nil meter yields no-op instruments
func NewInstruments(meter metric.Meter) *Instruments {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("marketsync/noop")
	}
	return &Instruments{meter: meter}
}

// Err returns every registration error seen so far
func (in *Instruments) Err() error {
	return errors.Join(in.errs...)
}

func (in *Instruments) fail(kind, name string, err error) {
	in.errs = append(in.errs, fmt.Errorf("register %s %s: %w", kind, name, err))
}

// Counter counts events that only go up: API calls, webhooks, audit records
type Counter struct {
	inst metric.Int64Counter
}

func (in *Instruments) Counter(name, description, unit string) *Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("counter", name, err)
		c = noop.Int64Counter{}
	}
	return &Counter{inst: c}
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	if c == nil || n <= 0 {
		return
	}
	c.inst.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Histogram records latencies and sizes
type Histogram struct {
	inst metric.Float64Histogram
}

// Histogram registers a histogram; nil buckets keep the SDK defaults
func (in *Instruments) Histogram(name, description, unit string, buckets []float64) *Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(description),
		metric.WithUnit(unit),
	}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	if err != nil {
		in.fail("histogram", name, err)
		h = noop.Float64Histogram{}
	}
	return &Histogram{inst: h}
}

func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.inst.Record(ctx, v, metric.WithAttributes(attrs...))
}

// Since records the seconds elapsed from start
func (h *Histogram) Since(ctx context.Context, start time.Time, attrs ...attribute.KeyValue) {
	h.Seconds(ctx, time.Since(start), attrs...)
}

func (h *Histogram) Seconds(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

// Gauge holds the last observed value, such as queue depth or link counts
type Gauge struct {
	inst metric.Int64Gauge
}

func (in *Instruments) Gauge(name, description, unit string) *Gauge {
	g, err := in.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("gauge", name, err)
		g = noop.Int64Gauge{}
	}
	return &Gauge{inst: g}
}

func (g *Gauge) Set(ctx context.Context, v int64, attrs ...attribute.KeyValue) {
	if g == nil {
		return
	}
	g.inst.Record(ctx, v, metric.WithAttributes(attrs...))
}

// InFlight tracks work currently in progress
type InFlight struct {
	inst metric.Int64UpDownCounter
}

func (in *Instruments) InFlight(name, description, unit string) *InFlight {
	u, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("updowncounter", name, err)
		u = noop.Int64UpDownCounter{}
	}
	return &InFlight{inst: u}
}

// Begin marks one unit in flight and returns the func that ends it
func (f *InFlight) Begin(ctx context.Context, attrs ...attribute.KeyValue) func() {
	if f == nil {
		return func() {}
	}
	opt := metric.WithAttributes(attrs...)
	f.inst.Add(ctx, 1, opt)
	return func() { f.inst.Add(ctx, -1, opt) }
}

// Attribute keys shared by metrics and spans
var (
	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrMarketplace   = attribute.Key("marketplace")
	AttrEndpointClass = attribute.Key("endpoint_class")
	AttrOperation     = attribute.Key("operation")
	AttrErrorKind     = attribute.Key("error_kind")
	AttrJobType       = attribute.Key("job_type")
	AttrJobState      = attribute.Key("job_state")
	AttrOutcome       = attribute.Key("outcome")
	AttrSyncStatus    = attribute.Key("sync_status")
)

// Bucket boundaries. Durations are in seconds, sizes in bytes.
var (
	HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	LimiterWaitBuckets  = []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60}
	JobDurationBuckets  = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900}
	WebhookSizeBuckets  = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 262144}
)
