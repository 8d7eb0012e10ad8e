package gqlrequest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	t.Run("GET query params", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/graphql?query=query%20%7B%20users%20%7B%20id%20%7D%20%7D&operationName=GetUsers", nil)
		env, err := DecodeEnvelope(req)
		require.NoError(t, err)
		assert.Equal(t, "query { users { id } }", env.Query)
		assert.Equal(t, "GetUsers", env.OperationName)
		assert.Equal(t, len(env.Query), env.DocumentSizeBytes)
	})

	t.Run("POST application/graphql rewinds body", func(t *testing.T) {
		body := "query { users { id } }"
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/graphql")

		env, err := DecodeEnvelope(req)
		require.NoError(t, err)
		assert.Equal(t, body, env.Query)

		rewound, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(rewound), "downstream handlers must see the original body")
	})

	t.Run("POST JSON payload", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql",
			strings.NewReader(`{"query":"query GetUsers { users { id } }","operationName":"GetUsers","variables":{"limit":5}}`))
		req.Header.Set("Content-Type", "application/json")

		env, err := DecodeEnvelope(req)
		require.NoError(t, err)
		assert.Equal(t, "query GetUsers { users { id } }", env.Query)
		assert.Equal(t, "GetUsers", env.OperationName)
		assert.JSONEq(t, `{"limit":5}`, string(env.VariablesRaw))
	})

	t.Run("POST JSON null variables dropped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql",
			strings.NewReader(`{"query":"{ users { id } }","variables":null}`))
		req.Header.Set("Content-Type", "application/json")

		env, err := DecodeEnvelope(req)
		require.NoError(t, err)
		assert.Nil(t, env.VariablesRaw)
	})

	t.Run("POST malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
		req.Header.Set("Content-Type", "application/json")

		_, err := DecodeEnvelope(req)
		require.Error(t, err)
	})

	t.Run("POST empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("  "))
		req.Header.Set("Content-Type", "application/json")

		env, err := DecodeEnvelope(req)
		require.NoError(t, err)
		assert.Empty(t, env.Query)
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := DecodeEnvelope(nil)
		require.Error(t, err)
	})
}
