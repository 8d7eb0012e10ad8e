package main

import (
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_TrustsProvidedCA(t *testing.T) {
	tlsServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer tlsServer.Close()

	caPath := filepath.Join(t.TempDir(), "root_ca.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: tlsServer.Certificate().Raw,
	})
	require.NoError(t, os.WriteFile(caPath, certPEM, 0o600))

	client, err := newHTTPClient(3*time.Second, caPath)
	require.NoError(t, err)

	resp, err := client.Get(tlsServer.URL)
	require.NoError(t, err, "request should succeed with the custom CA")
	_ = resp.Body.Close()
}

func TestNewHTTPClient_RejectsInvalidCAFile(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "invalid_ca.crt")
	require.NoError(t, os.WriteFile(caPath, []byte("invalid"), 0o600))

	_, err := newHTTPClient(3*time.Second, caPath)
	require.Error(t, err)
}
