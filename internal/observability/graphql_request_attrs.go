package observability

import (
	"context"
	"log/slog"

	"mysql-graphql/internal/gqlrequest"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GraphQLSpanAttributes builds canonical span attributes from request analysis.
func GraphQLSpanAttributes(analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 12)
	str := func(key, value string) {
		if value != "" {
			attrs = append(attrs, attribute.String(key, value))
		}
	}

	if analysis != nil {
		str("graphql.operation.requested_name", analysis.RequestedOperationName)
		str("graphql.operation.name", analysis.OperationName)
		str("graphql.operation.type", analysis.OperationType)
		str("graphql.operation.hash", analysis.OperationHash)
		if analysis.Envelope.DocumentSizeBytes > 0 {
			attrs = append(attrs, attribute.Int("graphql.document.size_bytes", analysis.Envelope.DocumentSizeBytes))
		}
		if analysis.Operation != nil {
			attrs = append(attrs,
				attribute.Int("graphql.query.field_count", analysis.FieldCount),
				attribute.Int("graphql.query.alias_count", analysis.AliasCount),
				attribute.Int("graphql.query.depth", analysis.SelectionDepth),
				attribute.Int("graphql.query.variable_count", analysis.VariableCount),
			)
		}
	}

	str("auth.role", meta.Role)
	str("schema.fingerprint", meta.Fingerprint)

	return attrs
}

// GraphQLLogFields builds canonical structured log fields from request analysis.
func GraphQLLogFields(ctx context.Context, analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []any {
	fields := make([]any, 0, 8)
	str := func(key, value string) {
		if value != "" {
			fields = append(fields, slog.String(key, value))
		}
	}

	if analysis != nil {
		str("operation_requested_name", analysis.RequestedOperationName)
		str("operation_name", analysis.OperationName)
		str("operation_type", analysis.OperationType)
		str("operation_hash", analysis.OperationHash)
	}
	str("role", meta.Role)
	str("schema_fingerprint", meta.Fingerprint)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, slog.String("trace_id", sc.TraceID().String()))
	}

	return fields
}
