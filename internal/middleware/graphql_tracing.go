package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"mysql-graphql/internal/gqlrequest"
	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/observability"

	"go.opentelemetry.io/otel"
)

const tracerName = "mysql-graphql/graphql"

// GraphQLTracingMiddleware instruments GraphQL execution with an inner span.
// Requests without a query (GraphiQL page loads) are passed through
// untraced. Trace and span IDs are folded into the request logger so log
// lines correlate with the trace.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := otel.Tracer(tracerName).Start(r.Context(), "graphql.execute")
			defer span.End()

			if sc := span.SpanContext(); sc.IsValid() {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(
					slog.String("trace_id", sc.TraceID().String()),
					slog.String("span_id", sc.SpanID().String()),
				))
			}
			if span.IsRecording() {
				meta, _ := gqlrequest.ExecMetaFromContext(r.Context())
				span.SetAttributes(observability.GraphQLSpanAttributes(analysis, meta)...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
