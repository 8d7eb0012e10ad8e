package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)

	t.Run("disabled passes everything", func(t *testing.T) {
		handler := RateLimitMiddleware(RateLimitConfig{Enabled: false})(ok)
		for i := 0; i < 5; i++ {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code)
		}
	})

	t.Run("zero burst disables limiting", func(t *testing.T) {
		handler := RateLimitMiddleware(RateLimitConfig{Enabled: true, RPS: 1, Burst: 0})(ok)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("rejects past burst with 429", func(t *testing.T) {
		handler := RateLimitMiddleware(RateLimitConfig{Enabled: true, RPS: 1, Burst: 2})(ok)

		for i := 0; i < 2; i++ {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusOK, rr.Code, "request %d within burst", i+1)
		}

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, "1", rr.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rr.Body.String())
	})
}
