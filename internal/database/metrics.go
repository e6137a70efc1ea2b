package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics times order and customer store calls. A nil *Metrics records nothing.
type Metrics struct {
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.queryDuration, err = meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Order store query duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_duration histogram: %w", err)
	}

	m.queryErrors, err = meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Order store queries that returned an error"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_errors counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordQuery(ctx context.Context, operation string, durationSeconds float64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.queryDuration.Record(ctx, durationSeconds, attrs)
	if err != nil {
		m.queryErrors.Add(ctx, 1, attrs)
	}
}

// RegisterPoolStats exports the pgx pool's connection counts as observable gauges.
func RegisterPoolStats(meter metric.Meter, stat func() *pgxpool.Stat) error {
	acquired, err := meter.Int64ObservableGauge(
		"db_pool_acquired_connections",
		metric.WithDescription("Connections currently checked out of the pool"),
	)
	if err != nil {
		return fmt.Errorf("create db_pool_acquired_connections gauge: %w", err)
	}
	idle, err := meter.Int64ObservableGauge(
		"db_pool_idle_connections",
		metric.WithDescription("Idle connections held by the pool"),
	)
	if err != nil {
		return fmt.Errorf("create db_pool_idle_connections gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stat()
		o.ObserveInt64(acquired, int64(s.AcquiredConns()))
		o.ObserveInt64(idle, int64(s.IdleConns()))
		return nil
	}, acquired, idle)
	if err != nil {
		return fmt.Errorf("register pool stats callback: %w", err)
	}
	return nil
}
