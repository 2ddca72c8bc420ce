package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics and Prometheus integration
type MetricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *prometheus.Registry

	// Application metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Order book metrics
	orderBookUpdatesTotal       metric.Int64Counter
	orderBookLevels             metric.Int64Gauge
	orderBookCircuitBreakerOpen metric.Int64Gauge
	orderBookUpdateLatency      metric.Float64Histogram
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Namespace      string
	Port           int
	Enabled        bool
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	// Create Prometheus registry
	registry := prometheus.NewRegistry()

	// Create Prometheus exporter
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	// Create resource
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	// Set global meter provider
	otel.SetMeterProvider(meterProvider)

	// Create meter
	meter := meterProvider.Meter(cfg.ServiceName)

	// Initialize metrics
	mp := &MetricsProvider{
		meterProvider: meterProvider,
		meter:         meter,
		registry:      registry,
	}

	if err := mp.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return mp, nil
}

// initializeMetrics creates all application metrics
func (mp *MetricsProvider) initializeMetrics() error {
	var err error

	// HTTP metrics
	mp.httpRequestsTotal, err = mp.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	mp.httpRequestDuration, err = mp.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	// Order book metrics
	mp.orderBookUpdatesTotal, err = mp.meter.Int64Counter(
		"orderbook_updates_total",
		metric.WithDescription("Total number of depth updates processed, by outcome status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create orderbook_updates_total counter: %w", err)
	}

	mp.orderBookLevels, err = mp.meter.Int64Gauge(
		"orderbook_levels",
		metric.WithDescription("Current number of price levels in a book"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create orderbook_levels gauge: %w", err)
	}

	mp.orderBookCircuitBreakerOpen, err = mp.meter.Int64Gauge(
		"orderbook_circuit_breaker_open",
		metric.WithDescription("1 when a book's circuit breaker is open, 0 otherwise"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create orderbook_circuit_breaker_open gauge: %w", err)
	}

	mp.orderBookUpdateLatency, err = mp.meter.Float64Histogram(
		"orderbook_update_latency_seconds",
		metric.WithDescription("Time taken to apply a single depth update"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1),
	)
	if err != nil {
		return fmt.Errorf("failed to create orderbook_update_latency_seconds histogram: %w", err)
	}

	return nil
}

// HTTP Metrics Methods

// RecordHTTPRequest records an HTTP request metric
func (mp *MetricsProvider) RecordHTTPRequest(ctx context.Context, method, path, status string, duration time.Duration) {
	if mp.httpRequestsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	}

	mp.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// Order Book Metrics Methods

// RecordDepthUpdate records one applied (or rejected) depth update and
// the time it took to apply.
func (mp *MetricsProvider) RecordDepthUpdate(ctx context.Context, symbol string, success bool, duration time.Duration) {
	if mp.orderBookUpdatesTotal == nil {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}

	attrs := []attribute.KeyValue{
		attribute.String("symbol", symbol),
		attribute.String("status", status),
	}

	mp.orderBookUpdatesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.orderBookUpdateLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// UpdateBookLevels reports a book's current level count.
func (mp *MetricsProvider) UpdateBookLevels(ctx context.Context, symbol string, levels int) {
	if mp.orderBookLevels == nil {
		return
	}
	mp.orderBookLevels.Record(ctx, int64(levels), metric.WithAttributes(attribute.String("symbol", symbol)))
}

// UpdateCircuitBreakerState reports whether a book's circuit breaker is
// currently open.
func (mp *MetricsProvider) UpdateCircuitBreakerState(ctx context.Context, symbol string, open bool) {
	if mp.orderBookCircuitBreakerOpen == nil {
		return
	}
	var v int64
	if open {
		v = 1
	}
	mp.orderBookCircuitBreakerOpen.Record(ctx, v, metric.WithAttributes(attribute.String("symbol", symbol)))
}

// Handler returns the Prometheus scrape handler over this provider's
// registry, for mounting at GET /metrics on the query API. Returns a 503
// handler when metrics are disabled.
func (mp *MetricsProvider) Handler() http.Handler {
	if mp.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts a standalone Prometheus metrics HTTP server,
// for deployments that scrape a dedicated port instead of the query API.
func (mp *MetricsProvider) StartMetricsServer(port int) error {
	if mp.registry == nil {
		return fmt.Errorf("metrics not enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", mp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider == nil {
		return nil
	}
	return mp.meterProvider.Shutdown(ctx)
}
