// Package internal provides internal implementation for obsx.
package internal

import (
	"context"
	"runtime"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// EnableRuntimeMetrics registers Go runtime metrics: goroutine count, GC
// cycles, and heap/stack memory. Metrics are collected on scrape.
func EnableRuntimeMetrics(ctx context.Context, meterProvider *sdkmetric.MeterProvider) error {
	meter := meterProvider.Meter("go.eggybyte.com/servex/obsx/runtime")

	goroutines, err := meter.Int64ObservableGauge(
		"process_runtime_go_goroutines",
		metric.WithDescription("Number of goroutines that currently exist"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return err
	}

	heapBytes, err := meter.Int64ObservableGauge(
		"process_runtime_go_memory_heap_bytes",
		metric.WithDescription("Heap memory in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	stackBytes, err := meter.Int64ObservableGauge(
		"process_runtime_go_memory_stack_bytes",
		metric.WithDescription("Stack memory in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	gcCount, err := meter.Int64ObservableCounter(
		"process_runtime_go_gc_count_total",
		metric.WithDescription("Total number of GC cycles completed"),
		metric.WithUnit("{gc}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			observer.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))

			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			observer.ObserveInt64(heapBytes, int64(m.HeapAlloc))
			observer.ObserveInt64(stackBytes, int64(m.StackInuse))
			observer.ObserveInt64(gcCount, int64(m.NumGC))

			return nil
		},
		goroutines,
		heapBytes,
		stackBytes,
		gcCount,
	)

	return err
}

// RegisterServerMetrics registers gauges observing the server lifecycle
// state and the tracked session count. The callbacks run on every scrape.
func RegisterServerMetrics(state func() int64, sessions func() int64, meterProvider *sdkmetric.MeterProvider) error {
	meter := meterProvider.Meter("go.eggybyte.com/servex/obsx/server")

	stateGauge, err := meter.Int64ObservableGauge(
		"server_lifecycle_state",
		metric.WithDescription("Current lifecycle state (0=created 1=starting 2=running 3=stopping 4=stopped)"),
	)
	if err != nil {
		return err
	}

	sessionGauge, err := meter.Int64ObservableGauge(
		"server_tracked_sessions",
		metric.WithDescription("Number of currently tracked sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if state != nil {
				observer.ObserveInt64(stateGauge, state())
			}
			if sessions != nil {
				observer.ObserveInt64(sessionGauge, sessions())
			}
			return nil
		},
		stateGauge,
		sessionGauge,
	)

	return err
}
