// Package obsx provides Prometheus-based metrics collection.
//
// Overview:
//   - Responsibility: Bootstrap an OpenTelemetry metrics provider with Prometheus export
//   - Key Types: Options for configuration, Provider for managing lifecycle
//   - Concurrency Model: Provider is safe for concurrent use
//   - Error Semantics: NewProvider returns an error for initialization failures
//   - Performance Notes: Metrics are collected on demand when the endpoint is scraped
//
// Usage:
//
//	provider, err := obsx.NewProvider(ctx, obsx.Options{
//	  ServiceName: "my-server",
//	  ServiceVersion: "1.0.0",
//	})
//	mux.Handle("/metrics", provider.PrometheusHandler())
//	defer provider.Shutdown(ctx)
package obsx

import (
	"context"
	"database/sql"
	"net/http"

	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"go.eggybyte.com/servex/obsx/internal"
)

// Options holds configuration for the metrics provider.
type Options struct {
	ServiceName    string            // Service name for metrics
	ServiceVersion string            // Service version
	ResourceAttrs  map[string]string // Additional resource attributes
}

// Provider manages an OpenTelemetry metrics provider with Prometheus export.
// The provider must be shut down when no longer needed.
type Provider struct {
	impl *internal.Provider
}

// NewProvider creates a new metrics provider with Prometheus export.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	impl, err := internal.NewProvider(ctx, internal.ProviderOptions{
		ServiceName:    opts.ServiceName,
		ServiceVersion: opts.ServiceVersion,
		ResourceAttrs:  opts.ResourceAttrs,
	})
	if err != nil {
		return nil, err
	}

	return &Provider{impl: impl}, nil
}

// MeterProvider returns the OpenTelemetry meter provider.
func (p *Provider) MeterProvider() *metric.MeterProvider {
	return p.impl.MeterProvider
}

// Meter returns an OpenTelemetry Meter for creating custom metrics. The meter
// name should be the component name.
func (p *Provider) Meter(name string) api.Meter {
	return p.impl.MeterProvider.Meter(name)
}

// PrometheusHandler returns an HTTP handler serving metrics in Prometheus
// text format, suitable for mounting at /metrics.
func (p *Provider) PrometheusHandler() http.Handler {
	return p.impl.GetPrometheusHandler()
}

// Shutdown gracefully shuts down the provider. Blocks until shutdown
// completes or the internal timeout elapses.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.impl.Shutdown(ctx)
}

// EnableRuntimeMetrics starts collecting Go runtime metrics: goroutine count,
// GC cycles, and heap/stack memory. Safe to call multiple times.
func (p *Provider) EnableRuntimeMetrics(ctx context.Context) error {
	return internal.EnableRuntimeMetrics(ctx, p.impl.MeterProvider)
}

// RegisterServerMetrics registers gauges observing the server lifecycle:
// current state (numeric), tracked session count, and shutdown totals. The
// callbacks are invoked on every scrape and must be safe for concurrent use.
func (p *Provider) RegisterServerMetrics(state func() int64, sessions func() int64) error {
	return internal.RegisterServerMetrics(state, sessions, p.impl.MeterProvider)
}

// RegisterDBMetrics registers connection-pool metrics for a database,
// collected from sql.DBStats on every scrape.
func (p *Provider) RegisterDBMetrics(name string, db *sql.DB) error {
	return internal.RegisterDBMetrics(name, db, p.impl.MeterProvider)
}

// RegisterGORMMetrics registers connection-pool metrics for a GORM database.
// Convenience wrapper around RegisterDBMetrics.
func (p *Provider) RegisterGORMMetrics(name string, gormDB interface{ DB() (*sql.DB, error) }) error {
	return internal.RegisterGORMMetrics(name, gormDB, p.impl.MeterProvider)
}
