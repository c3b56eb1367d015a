package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/meschain/marketsync/internal/infrastructure/telemetry"
)

type httpMetrics struct {
	requests *telemetry.Counter
	latency  *telemetry.Histogram
	size     *telemetry.Histogram
	inFlight *telemetry.InFlight
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in := telemetry.NewInstruments(meter)
	m := &httpMetrics{
		requests: in.Counter("http_server_request_total", "Total number of HTTP requests", "{request}"),
		latency: in.Histogram("http_server_request_duration_seconds",
			"HTTP request latency distribution in seconds", "s", telemetry.HTTPDurationBuckets),
		size: in.Histogram("http_server_request_size_bytes",
			"HTTP request body size distribution in bytes", "By", telemetry.WebhookSizeBuckets),
		inFlight: in.InFlight("http_server_active_requests", "Number of currently active HTTP requests", "{request}"),
	}
	return m, in.Err()
}

// HTTPMetrics records request count, latency, body size and in-flight
// requests. Routes with a :marketplace parameter are labelled with the
// marketplace, so webhook traffic can be told apart per marketplace. A nil
// meter disables the middleware.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	m, err := newHTTPMetrics(meter)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		done := m.inFlight.Begin(ctx)
		c.Next()
		done()

		base := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(routePattern(c)),
		}
		if mp := marketplaceParam(c); mp != "" {
			base = append(base, telemetry.AttrMarketplace.String(mp))
		}
		counted := append(append([]attribute.KeyValue{}, base...), telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))

		m.requests.Inc(ctx, counted...)
		m.latency.Since(ctx, start, base...)
		if size := c.Request.ContentLength; size > 0 {
			m.size.Record(ctx, float64(size), base...)
		}
	}
}

// routePattern returns the matched route instead of the raw path to keep
// label cardinality bounded
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

// marketplaceParam returns the upper-cased :marketplace path parameter, or ""
// when the route has none or it is not a supported marketplace
func marketplaceParam(c *gin.Context) string {
	raw := c.Param("marketplace")
	if raw == "" {
		return ""
	}
	if code, err := parseMarketplace(raw); err == nil {
		return code
	}
	return ""
}
