package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildServerMux_DevTokenDisabledReturnsNotFound(t *testing.T) {
	mux, err := buildServerMux(serverConfig{
		Issuer:   "https://jwks:9000",
		Audience: []string{"mysql-graphql"},
		KID:      "local-key",
		JWKSPem:  []byte(`{"keys":[]}`),
		DevToken: devTokenConfig{Enabled: false},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dev/token", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDevTokenHandler_Unauthorized(t *testing.T) {
	handler, _ := newTestVendor(t)

	t.Run("missing admin header", func(t *testing.T) {
		rec := vend(handler, `{"db_role":"app_viewer"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rec))
	})

	t.Run("wrong admin token", func(t *testing.T) {
		rec := vend(handler, `{"db_role":"app_viewer"}`, map[string]string{adminTokenHeader: "wrong-token"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rec))
	})
}

func TestDevTokenHandler_ValidRequestReturnsSignedJWT(t *testing.T) {
	handler, key := newTestVendor(t)

	rec := vend(handler, `{"subject":"alice","db_role":"app_viewer"}`,
		map[string]string{adminTokenHeader: "secret-token"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload devTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Token)
	assert.Equal(t, int64((24 * time.Hour).Seconds()), payload.ExpiresInSeconds)

	claims := parseClaims(t, payload.Token, &key.PublicKey)
	assert.Equal(t, "https://jwks:9000", claims["iss"])
	assert.Equal(t, "alice", claims["sub"])
	assert.Equal(t, "app_viewer", claims["db_role"])

	aud, ok := claims["aud"].([]interface{})
	require.True(t, ok, "aud claim should be a list, got %#v", claims["aud"])
	assert.Equal(t, []interface{}{"mysql-graphql"}, aud)
}

func TestDevTokenHandler_TTLRejections(t *testing.T) {
	handler, _ := newTestVendor(t)

	tests := map[string]struct {
		body       string
		wantSubstr string
	}{
		"above max": {
			body:       `{"expires_in":"240h"}`,
			wantSubstr: "exceeds maximum",
		},
		"not a duration": {
			body:       `{"expires_in":"soon"}`,
			wantSubstr: "valid duration",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := vend(handler, tc.body, map[string]string{adminTokenHeader: "secret-token"})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec), tc.wantSubstr)
		})
	}
}

func TestDevTokenHandler_AcceptTextPlainReturnsRawToken(t *testing.T) {
	handler, key := newTestVendor(t)

	rec := vend(handler, `{"db_role":"app_admin"}`, map[string]string{
		adminTokenHeader: "secret-token",
		"Accept":         "text/plain",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := strings.TrimSpace(rec.Body.String())
	require.NotEmpty(t, body, "expected raw JWT in response body")

	claims := parseClaims(t, body, &key.PublicKey)
	assert.Equal(t, defaultDevTokenSub, claims["sub"])
	assert.Equal(t, "app_admin", claims["db_role"])
}

func newTestVendor(t *testing.T) (http.Handler, *rsa.PrivateKey) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	handler, err := newDevTokenHandler(serverConfig{
		Issuer:   "https://jwks:9000",
		Audience: []string{"mysql-graphql"},
		KID:      "local-key",
		DevToken: devTokenConfig{
			Enabled:    true,
			AdminToken: "secret-token",
			PrivateKey: privateKey,
			DefaultTTL: 24 * time.Hour,
			MaxTTL:     7 * 24 * time.Hour,
		},
	})
	require.NoError(t, err)
	return handler, privateKey
}

func vend(handler http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/dev/token", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload jsonError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error
}

func parseClaims(t *testing.T, tokenString string, pub *rsa.PublicKey) jwt.MapClaims {
	t.Helper()
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok, "expected map claims, got %T", token.Claims)
	return claims
}
