package middleware

import (
	"net/http"

	"mysql-graphql/internal/gqlrequest"
	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/observability"
	"mysql-graphql/internal/schemarefresh"
)

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request once
// and stores derived metadata in request context for downstream middleware.
func GraphQLRequestAnalysisMiddleware(manager *schemarefresh.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			var meta gqlrequest.ExecMeta
			if manager != nil {
				// Role resolution may fail closed; the fingerprint is still
				// useful for correlating against a schema generation.
				_, role, fingerprint, ok := manager.SnapshotForContext(ctx)
				if ok {
					meta.Role = role
				}
				meta.Fingerprint = fingerprint
			}
			if analysis != nil {
				meta.OperationName = analysis.OperationName
				meta.OperationType = analysis.OperationType
				meta.OperationHash = analysis.OperationHash
			}
			ctx = gqlrequest.WithExecMeta(ctx, meta)

			if fields := observability.GraphQLLogFields(ctx, analysis, meta); len(fields) > 0 {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(fields...))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
