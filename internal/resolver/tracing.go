package resolver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func startEngineSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("mysql-graphql/resolver")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func finishEngineSpan(span trace.Span, hasErrors bool) {
	if span == nil {
		return
	}
	if hasErrors {
		span.SetAttributes(attribute.String("graphql.engine.outcome", "error"))
		span.SetStatus(codes.Error, "request resolved with errors")
		return
	}
	span.SetAttributes(attribute.String("graphql.engine.outcome", "success"))
}
