package observability

import (
	"context"
	"fmt"

	"github.com/orderbook-engine/service/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer owns the Jaeger-exported OpenTelemetry pipeline. Construction
// registers the provider and the W3C propagator globally, so the HTTP
// middleware picks spans up through otel.Tracer without this value being
// threaded through every handler; the returned Tracer exists to start
// spans directly and to flush the pipeline at shutdown.
type Tracer struct {
	tp     *sdktrace.TracerProvider
	tracer oteltrace.Tracer
}

// NewTracer wires the exporter, provider, and propagator from the
// service's observability configuration.
func NewTracer(cfg config.ObservabilityConfig) (*Tracer, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("jaeger exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		)),
		// Sample everything locally but respect an upstream decision
		// when a caller propagates one.
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		tp:     tp,
		tracer: tp.Tracer(cfg.ServiceName),
	}, nil
}

// Start opens a span under the service tracer.
func (t *Tracer) Start(ctx context.Context, name string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Shutdown flushes buffered spans and stops the pipeline.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.tp.Shutdown(ctx)
}
