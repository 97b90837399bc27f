// Package internal contains Connect interceptor implementations.
package internal

import (
	"context"
	"strings"
	"time"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector holds OpenTelemetry instruments for RPC monitoring.
type MetricsCollector struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewMetricsCollector creates RPC instruments on the given meter.
func NewMetricsCollector(meter metric.Meter) (*MetricsCollector, error) {
	requestsTotal, err := meter.Int64Counter(
		"rpc_requests_total",
		metric.WithDescription("Total number of RPC requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"rpc_request_duration_seconds",
		metric.WithDescription("RPC request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsCollector{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
	}, nil
}

// MetricsInterceptor records request count and duration per procedure.
//
// Labels:
//   - rpc_service: service name (e.g., "greet.v1.GreeterService")
//   - rpc_method: method name (e.g., "SayHello")
//   - rpc_code: Connect error code ("ok" for success)
func MetricsInterceptor(collector *MetricsCollector) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			startTime := time.Now()
			service, method := parseProcedure(req.Spec().Procedure)

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				if connectErr, ok := err.(*connect.Error); ok {
					code = connectErr.Code().String()
				} else {
					code = "unknown"
				}
			}

			attrs := metric.WithAttributes(
				attribute.String("rpc_service", service),
				attribute.String("rpc_method", method),
				attribute.String("rpc_code", code),
			)

			collector.requestsTotal.Add(ctx, 1, attrs)
			collector.requestDuration.Record(ctx, time.Since(startTime).Seconds(), attrs)

			return resp, err
		}
	}
}

// parseProcedure splits a Connect procedure path into service and method.
// Procedure format: "/package.v1.ServiceName/MethodName".
func parseProcedure(procedure string) (service, method string) {
	procedure = strings.TrimPrefix(procedure, "/")

	lastSlash := strings.LastIndex(procedure, "/")
	if lastSlash == -1 {
		return "", procedure
	}

	return procedure[:lastSlash], procedure[lastSlash+1:]
}
