// Package internal provides internal implementation for obsx.
package internal

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// RegisterDBMetrics registers connection-pool metrics for a database.
// Stats are read from sql.DBStats on every scrape.
func RegisterDBMetrics(name string, db *sql.DB, meterProvider *sdkmetric.MeterProvider) error {
	meter := meterProvider.Meter("go.eggybyte.com/servex/obsx/database")

	dbAttr := attribute.String("db_name", name)

	openConns, err := meter.Int64ObservableGauge(
		"db_pool_open_connections",
		metric.WithDescription("Number of established connections both in use and idle"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	inUse, err := meter.Int64ObservableGauge(
		"db_pool_in_use",
		metric.WithDescription("Number of connections currently in use"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	idle, err := meter.Int64ObservableGauge(
		"db_pool_idle",
		metric.WithDescription("Number of idle connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	waitCount, err := meter.Int64ObservableCounter(
		"db_pool_wait_count_total",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return err
	}

	waitDuration, err := meter.Float64ObservableCounter(
		"db_pool_wait_seconds_total",
		metric.WithDescription("Total time blocked waiting for new connections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			stats := db.Stats()

			observer.ObserveInt64(openConns, int64(stats.OpenConnections), metric.WithAttributes(dbAttr))
			observer.ObserveInt64(inUse, int64(stats.InUse), metric.WithAttributes(dbAttr))
			observer.ObserveInt64(idle, int64(stats.Idle), metric.WithAttributes(dbAttr))
			observer.ObserveInt64(waitCount, stats.WaitCount, metric.WithAttributes(dbAttr))
			observer.ObserveFloat64(waitDuration, stats.WaitDuration.Seconds(), metric.WithAttributes(dbAttr))

			return nil
		},
		openConns,
		inUse,
		idle,
		waitCount,
		waitDuration,
	)

	return err
}

// RegisterGORMMetrics registers connection-pool metrics for a GORM database.
func RegisterGORMMetrics(name string, gormDB interface{ DB() (*sql.DB, error) }, meterProvider *sdkmetric.MeterProvider) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}

	return RegisterDBMetrics(name, sqlDB, meterProvider)
}
