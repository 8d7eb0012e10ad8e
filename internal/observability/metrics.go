package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds custom metrics for GraphQL request resolution.
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	queryDepth      metric.Int64Histogram
	planCacheHits   metric.Int64Counter
	planCacheMisses metric.Int64Counter
}

// instrumentBuilder creates instruments on one meter and retains the first
// creation error, so callers can assemble a metrics struct without an error
// check per instrument.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) fail(instrument string, err error) {
	if b.err == nil {
		b.err = fmt.Errorf("failed to create %s: %w", instrument, err)
	}
}

func (b *instrumentBuilder) counter(name, description string) metric.Int64Counter {
	counter, err := b.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		b.fail(name, err)
	}
	return counter
}

func (b *instrumentBuilder) upDownCounter(name, description string) metric.Int64UpDownCounter {
	counter, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(description))
	if err != nil {
		b.fail(name, err)
	}
	return counter
}

func (b *instrumentBuilder) intHistogram(name, description string) metric.Int64Histogram {
	histogram, err := b.meter.Int64Histogram(name, metric.WithDescription(description))
	if err != nil {
		b.fail(name, err)
	}
	return histogram
}

func (b *instrumentBuilder) durationHistogram(name, description string) metric.Float64Histogram {
	histogram, err := b.meter.Float64Histogram(name,
		metric.WithDescription(description),
		metric.WithUnit("ms"),
	)
	if err != nil {
		b.fail(name, err)
	}
	return histogram
}

// InitGraphQLMetrics initializes GraphQL-specific metrics.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	builder := &instrumentBuilder{meter: otel.Meter("mysql-graphql")}

	m := &GraphQLMetrics{
		requestDuration: builder.durationHistogram("graphql.request.duration",
			"Duration of GraphQL requests in milliseconds"),
		requestCounter: builder.counter("graphql.requests.total",
			"Total number of GraphQL requests"),
		errorCounter: builder.counter("graphql.errors.total",
			"Total number of GraphQL requests resolved with errors"),
		activeRequests: builder.upDownCounter("graphql.requests.active",
			"Number of active GraphQL requests"),
		queryDepth: builder.intHistogram("graphql.query.depth",
			"Depth of GraphQL queries"),
		planCacheHits: builder.counter("graphql.plan_cache.hits",
			"Number of compiled statements served from the plan cache"),
		planCacheMisses: builder.counter("graphql.plan_cache.misses",
			"Number of requests that compiled a fresh statement"),
	}
	if builder.err != nil {
		return nil, builder.err
	}
	return m, nil
}

// RecordRequest records a GraphQL request with its duration and outcome.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := []attribute.KeyValue{
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	}

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// RecordQueryDepth records the depth of a GraphQL query.
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordPlanCacheHit counts a request served by a cached plan.
func (m *GraphQLMetrics) RecordPlanCacheHit(ctx context.Context) {
	m.planCacheHits.Add(ctx, 1)
}

// RecordPlanCacheMiss counts a request that compiled a fresh statement.
func (m *GraphQLMetrics) RecordPlanCacheMiss(ctx context.Context) {
	m.planCacheMisses.Add(ctx, 1)
}

// IncrementActiveRequests increments the active requests counter.
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter.
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the GraphQLMetrics instance.
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
