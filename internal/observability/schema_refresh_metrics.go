package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SchemaRefreshMetrics holds custom metrics for schema refresh behavior.
type SchemaRefreshMetrics struct {
	refreshCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	durationHist    metric.Float64Histogram
	lastSuccessUnix atomic.Int64
}

// InitSchemaRefreshMetrics initializes schema refresh metrics.
func InitSchemaRefreshMetrics(logger *slog.Logger) (*SchemaRefreshMetrics, error) {
	builder := &instrumentBuilder{meter: otel.Meter("mysql-graphql")}

	m := &SchemaRefreshMetrics{
		refreshCounter: builder.counter("schema.refresh.total",
			"Total number of schema refresh attempts"),
		errorCounter: builder.counter("schema.refresh.errors.total",
			"Total number of failed schema refresh attempts"),
		durationHist: builder.durationHistogram("schema.refresh.duration",
			"Duration of schema refresh attempts in milliseconds"),
	}
	if builder.err != nil {
		return nil, builder.err
	}

	// The last-success timestamp is observed lazily so it survives scrape
	// intervals with no refresh activity.
	lastSuccess, err := builder.meter.Int64ObservableGauge(
		"schema.refresh.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful schema refresh"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema refresh last success gauge: %w", err)
	}
	_, err = builder.meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			if v := m.lastSuccessUnix.Load(); v > 0 {
				observer.ObserveInt64(lastSuccess, v)
			}
			return nil
		},
		lastSuccess,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register schema refresh gauge callback: %w", err)
	}

	logger.Info("schema refresh metrics initialized")
	return m, nil
}

// RecordRefresh records a schema refresh attempt.
func (m *SchemaRefreshMetrics) RecordRefresh(ctx context.Context, duration time.Duration, success bool, trigger string) {
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	)
	m.refreshCounter.Add(ctx, 1, attrs)
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), attrs)

	if success {
		m.lastSuccessUnix.Store(time.Now().Unix())
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}
