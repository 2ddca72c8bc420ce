// Package observability carries the ambient stack for the order book
// service: structured logging, Prometheus/OpenTelemetry metrics,
// optional Jaeger tracing, health probes, and HTTP middleware.
package observability

import (
	"context"
	"fmt"

	"github.com/orderbook-engine/service/internal/config"
)

// Provider bundles the service's observability components so main can
// construct, start, and shut them down as one unit.
type Provider struct {
	Logger  *Logger
	Metrics *MetricsProvider
	Tracing *Tracer

	config config.ObservabilityConfig
}

// NewProvider wires a logger, a metrics provider, and (when enabled) a
// tracing provider from the service's observability configuration.
func NewProvider(cfg config.ObservabilityConfig) (*Provider, error) {
	logger := NewLogger(cfg)

	metrics, err := NewMetricsProvider(MetricsConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("metrics provider: %w", err)
	}

	p := &Provider{
		Logger:  logger,
		Metrics: metrics,
		config:  cfg,
	}

	if cfg.TracingEnabled {
		tracing, err := NewTracer(cfg)
		if err != nil {
			return nil, fmt.Errorf("tracer: %w", err)
		}
		p.Tracing = tracing
	}

	return p, nil
}

// Start logs that the stack is up. Components are live from construction;
// this exists for symmetry with Stop and to leave a startup breadcrumb.
func (p *Provider) Start(ctx context.Context) error {
	p.Logger.Info(ctx, "observability started", map[string]interface{}{
		"service": p.config.ServiceName,
		"tracing": p.Tracing != nil,
	})
	return nil
}

// Stop flushes and shuts down the metrics and tracing pipelines.
func (p *Provider) Stop(ctx context.Context) error {
	var firstErr error
	if p.Tracing != nil {
		if err := p.Tracing.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := p.Metrics.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	p.Logger.Info(ctx, "observability stopped")
	return firstErr
}
