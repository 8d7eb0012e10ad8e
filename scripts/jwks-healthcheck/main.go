// Command jwks-healthcheck probes an OIDC discovery endpoint and exits
// non-zero when the issuer is unreachable or the document is malformed.
// Intended as a container healthcheck for the local JWKS server.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type oidcDiscoveryDocument struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	url := flag.String("url", "https://localhost:9000/.well-known/openid-configuration", "OIDC discovery URL to probe")
	timeout := flag.Duration("timeout", 3*time.Second, "HTTP request timeout")
	expectedIssuer := flag.String("expected-issuer", "", "Optional expected issuer value")
	caFile := flag.String("ca-file", "", "CA certificate to trust for the probe (default: skip TLS verification)")
	flag.Parse()

	client, err := newHTTPClient(*timeout, *caFile)
	if err != nil {
		return err
	}

	resp, err := client.Get(*url)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var doc oidcDiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode discovery document: %w", err)
	}

	if strings.TrimSpace(doc.Issuer) == "" {
		return errors.New("discovery document missing issuer")
	}
	if strings.TrimSpace(doc.JWKSURI) == "" {
		return errors.New("discovery document missing jwks_uri")
	}
	if *expectedIssuer != "" && doc.Issuer != *expectedIssuer {
		return fmt.Errorf("issuer mismatch: got %q want %q", doc.Issuer, *expectedIssuer)
	}
	return nil
}

// newHTTPClient trusts the given CA certificate when one is provided. With
// no CA file it skips verification, since the local compose JWKS server uses
// a self-signed certificate.
func newHTTPClient(timeout time.Duration, caFile string) (*http.Client, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	if caFile != "" {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no certificates found in CA file %q", caFile)
		}
		tlsConfig = &tls.Config{RootCAs: pool}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}, nil
}
