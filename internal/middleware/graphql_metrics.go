package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"mysql-graphql/internal/observability"
)

// GraphQLMetricsMiddleware wraps a GraphQL handler and records metrics
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// GETs are GraphiQL page loads and health probes, not operations.
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			r = r.WithContext(ctx)

			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			operationType := "unknown"
			query, operationName := peekGraphQLRequest(r)
			if shape, err := measureQuery(query, operationName); err == nil && shape != nil {
				if t := strings.TrimSpace(shape.operationType); t != "" {
					operationType = t
				}
			}

			capture := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(capture, r)

			failed := capture.status >= 400 || hasErrorEntries(capture.body.Bytes())
			metrics.RecordRequest(ctx, time.Since(start), failed, operationType)
		})
	}
}

// capturingWriter records the status code and buffers the body so the
// response can be inspected for GraphQL errors after the handler returns.
type capturingWriter struct {
	http.ResponseWriter
	status    int
	committed bool
	body      bytes.Buffer
}

func (cw *capturingWriter) WriteHeader(code int) {
	if cw.committed {
		return
	}
	cw.status = code
	cw.committed = true
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *capturingWriter) Write(b []byte) (int, error) {
	if !cw.committed {
		cw.WriteHeader(http.StatusOK)
	}
	if len(b) > 0 {
		_, _ = cw.body.Write(b)
	}
	return cw.ResponseWriter.Write(b)
}

// hasErrorEntries reports whether the body is a GraphQL envelope with a
// non-empty errors array.
func hasErrorEntries(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return false
	}

	var envelope struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	return len(envelope.Errors) > 0
}
