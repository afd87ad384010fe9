package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/cauldronwatch/cauldronwatch/internal/api/middleware"

// Metrics holds the OpenTelemetry metrics instruments.
type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
	responseSize     metric.Int64Histogram
}

// NewMetrics creates a new Metrics instance with initialized instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP server requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestsInFlight, err := meter.Int64UpDownCounter(
		"http.server.requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("Size of HTTP server responses in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		requestsInFlight: requestsInFlight,
		responseSize:     responseSize,
	}, nil
}

// Middleware returns an HTTP middleware that records metrics for each request.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Track request in flight
			attrs := []attribute.KeyValue{
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
			}
			m.requestsInFlight.Add(r.Context(), 1, metric.WithAttributes(attrs...))
			defer m.requestsInFlight.Add(r.Context(), -1, metric.WithAttributes(attrs...))

			// Wrap response writer
			wrapped := newMetricsResponseWriter(w)

			// Process request
			next.ServeHTTP(wrapped, r)

			// Calculate duration
			duration := time.Since(start).Seconds()

			// Build attributes with status code
			attrs = append(attrs, attribute.String("http.status_code", strconv.Itoa(wrapped.statusCode)))

			// Add error attribute for 4xx/5xx responses
			if wrapped.statusCode >= 400 {
				attrs = append(attrs, attribute.Bool("error", true))
			}

			// Record metrics
			m.requestDuration.Record(r.Context(), duration, metric.WithAttributes(attrs...))
			m.requestTotal.Add(r.Context(), 1, metric.WithAttributes(attrs...))
			m.responseSize.Record(r.Context(), wrapped.written, metric.WithAttributes(attrs...))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture response metadata.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// FeedMetrics holds metrics for upstream feed pulls.
type FeedMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewFeedMetrics creates metrics for monitoring upstream feed pulls.
func NewFeedMetrics() (*FeedMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"feed.request.duration",
		metric.WithDescription("Duration of upstream feed requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"feed.request.total",
		metric.WithDescription("Total number of upstream feed requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &FeedMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// RecordRequest records metrics for one upstream feed pull.
func (m *FeedMetrics) RecordRequest(feed, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("feed.name", feed),
		attribute.String("feed.operation", operation),
	}

	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Use background context for metrics to avoid context cancellation issues
	ctx := context.TODO()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// PlanMetrics holds metrics for planning runs.
type PlanMetrics struct {
	runDuration    metric.Float64Histogram
	runTotal       metric.Int64Counter
	tripsPlanned   metric.Int64Histogram
	overflowEvents metric.Int64Counter
}

// NewPlanMetrics creates metrics for monitoring planning runs.
func NewPlanMetrics() (*PlanMetrics, error) {
	meter := otel.Meter(meterName)

	runDuration, err := meter.Float64Histogram(
		"plan.run.duration",
		metric.WithDescription("Duration of planning runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runTotal, err := meter.Int64Counter(
		"plan.run.total",
		metric.WithDescription("Total number of planning runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	tripsPlanned, err := meter.Int64Histogram(
		"plan.trips",
		metric.WithDescription("Number of trips in a computed plan"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return nil, err
	}

	overflowEvents, err := meter.Int64Counter(
		"plan.overflow.events",
		metric.WithDescription("Overflow events predicted by plan verification"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &PlanMetrics{
		runDuration:    runDuration,
		runTotal:       runTotal,
		tripsPlanned:   tripsPlanned,
		overflowEvents: overflowEvents,
	}, nil
}

// RecordRun records metrics for one planning run.
func (m *PlanMetrics) RecordRun(duration time.Duration, trips, overflows int, err error) {
	attrs := []attribute.KeyValue{}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	ctx := context.TODO()
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.runTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err == nil {
		m.tripsPlanned.Record(ctx, int64(trips), metric.WithAttributes(attrs...))
		m.overflowEvents.Add(ctx, int64(overflows), metric.WithAttributes(attrs...))
	}
}
