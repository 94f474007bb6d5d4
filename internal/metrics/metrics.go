package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	ActiveConnections metric.Int64UpDownCounter
	PostMutations     metric.Int64Counter
	ContactMessages   metric.Int64Counter
}

// Setup registers the site instruments with an OpenTelemetry meter provider
// backed by the Prometheus exporter and returns the /metrics handler.
// It registers with the default Prometheus registry, so call it once per process.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return m, promhttp.Handler(), nil
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequests, err = meter.Int64Counter(
		"site_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"site_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"site_cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"site_cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"site_live_connections",
		metric.WithDescription("Number of open WebSocket and SSE connections"),
	)
	if err != nil {
		return nil, err
	}

	m.PostMutations, err = meter.Int64Counter(
		"site_post_mutations_total",
		metric.WithDescription("Blog post creates, updates and deletes"),
	)
	if err != nil {
		return nil, err
	}

	m.ContactMessages, err = meter.Int64Counter(
		"site_contact_messages_total",
		metric.WithDescription("Contact form submissions accepted"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// The recorders below are nil-safe so components can run without metrics.

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordCacheHit(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) IncrementConnections(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) DecrementConnections(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, -1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordPostMutation(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.PostMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) RecordContactMessage(ctx context.Context) {
	if m == nil {
		return
	}
	m.ContactMessages.Add(ctx, 1)
}
