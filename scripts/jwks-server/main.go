// Command jwks-server is a development OIDC issuer: it serves discovery
// metadata and a JWKS document for a local RSA keypair, and can optionally
// vend signed development tokens over an admin-authenticated endpoint.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminTokenHeader      = "X-Admin-Token"
	defaultDevTokenSub    = "dev-user"
	maxRequestBodyBytes   = 1 << 20
	defaultTokenAudience  = "mysql-graphql"
	defaultDevTokenMaxTTL = 7 * 24 * time.Hour
)

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type serverConfig struct {
	Issuer   string
	Audience []string
	KID      string
	JWKSPem  []byte
	DevToken devTokenConfig
}

type devTokenConfig struct {
	Enabled        bool
	AdminToken     string
	PrivateKeyPath string
	PrivateKey     *rsa.PrivateKey
	DefaultTTL     time.Duration
	MaxTTL         time.Duration
}

type devTokenRequest struct {
	Subject   string   `json:"subject"`
	DBRole    string   `json:"db_role"`
	Roles     []string `json:"roles"`
	ExpiresIn string   `json:"expires_in"`
}

type devTokenResponse struct {
	Token            string `json:"token"`
	TokenType        string `json:"token_type"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
	ExpiresAt        string `json:"expires_at"`
}

type jsonError struct {
	Error string `json:"error"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":9000", "Listen address")
	issuer := flag.String("issuer", "https://localhost:9000", "OIDC issuer URL")
	audience := flag.String("audience", defaultTokenAudience, "Expected JWT audience value(s), comma-separated")
	publicKeyPath := flag.String("public-key", ".auth/jwt_public.pem", "Path to RSA public key (PEM)")
	kid := flag.String("kid", "local-key", "Key ID to advertise")
	enableTLS := flag.Bool("tls", true, "Enable HTTPS with a self-signed certificate")
	tlsCertPath := flag.String("tls-cert", ".auth/jwks_tls.crt", "Path to TLS certificate (PEM)")
	tlsKeyPath := flag.String("tls-key", ".auth/jwks_tls.key", "Path to TLS private key (PEM)")
	devTokenEnabled := flag.Bool("dev-token-enabled", false, "Enable dev-only token vending endpoint (/dev/token)")
	devTokenAdminToken := flag.String("dev-token-admin-token", "", "Shared admin token required by /dev/token")
	devTokenPrivateKey := flag.String("dev-token-private-key", ".auth/jwt_private.pem", "Path to RSA private key used by /dev/token")
	devTokenDefaultTTL := flag.Duration("dev-token-default-ttl", 24*time.Hour, "Default token lifetime for /dev/token")
	devTokenMaxTTL := flag.Duration("dev-token-max-ttl", defaultDevTokenMaxTTL, "Maximum allowed token lifetime for /dev/token")
	flag.Parse()

	key, err := loadPublicKey(*publicKeyPath)
	if err != nil {
		return err
	}
	jwksPayload, err := buildJWKS(key, *kid)
	if err != nil {
		return err
	}

	devCfg := devTokenConfig{
		Enabled:        *devTokenEnabled,
		AdminToken:     strings.TrimSpace(*devTokenAdminToken),
		PrivateKeyPath: strings.TrimSpace(*devTokenPrivateKey),
		DefaultTTL:     *devTokenDefaultTTL,
		MaxTTL:         *devTokenMaxTTL,
	}
	if err := validateAndLoadDevTokenConfig(&devCfg); err != nil {
		return err
	}

	audienceValues := splitList(*audience)
	if len(audienceValues) == 0 {
		return errors.New("audience is required")
	}

	mux, err := buildServerMux(serverConfig{
		Issuer:   *issuer,
		Audience: audienceValues,
		KID:      *kid,
		JWKSPem:  jwksPayload,
		DevToken: devCfg,
	})
	if err != nil {
		return err
	}

	if *enableTLS {
		if err := ensureTLSFiles(*tlsCertPath, *tlsKeyPath); err != nil {
			return err
		}
		fmt.Printf("JWKS server listening on https://%s\n", *addr)
		return http.ListenAndServeTLS(*addr, *tlsCertPath, *tlsKeyPath, mux)
	}

	fmt.Fprintln(os.Stderr, "warning: JWKS server running without TLS (dev only)")
	fmt.Printf("JWKS server listening on http://%s\n", *addr)
	return http.ListenAndServe(*addr, mux)
}

func buildServerMux(cfg serverConfig) (*http.ServeMux, error) {
	discovery, err := json.Marshal(map[string]string{
		"issuer":   cfg.Issuer,
		"jwks_uri": cfg.Issuer + "/jwks",
	})
	if err != nil {
		return nil, err
	}

	serveDoc := func(doc []byte) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(doc)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", serveDoc(discovery))
	mux.HandleFunc("/jwks", serveDoc(cfg.JWKSPem))
	if cfg.DevToken.Enabled {
		handler, err := newDevTokenHandler(cfg)
		if err != nil {
			return nil, err
		}
		mux.Handle("/dev/token", handler)
	}
	return mux, nil
}

func validateAndLoadDevTokenConfig(cfg *devTokenConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.AdminToken) == "" {
		return errors.New("dev-token-enabled requires --dev-token-admin-token")
	}
	if cfg.DefaultTTL <= 0 {
		return errors.New("dev-token-default-ttl must be greater than 0")
	}
	if cfg.MaxTTL <= 0 {
		return errors.New("dev-token-max-ttl must be greater than 0")
	}
	if cfg.DefaultTTL > cfg.MaxTTL {
		return errors.New("dev-token-default-ttl cannot exceed dev-token-max-ttl")
	}
	privateKey, err := loadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load dev token private key: %w", err)
	}
	cfg.PrivateKey = privateKey
	return nil
}

// devTokenVendor signs short-lived development JWTs for callers that present
// the shared admin token.
type devTokenVendor struct {
	issuer     string
	audience   []string
	kid        string
	adminToken string
	cfg        devTokenConfig
}

func newDevTokenHandler(cfg serverConfig) (http.Handler, error) {
	if !cfg.DevToken.Enabled {
		return nil, nil
	}
	if cfg.DevToken.PrivateKey == nil {
		return nil, errors.New("dev token private key is required")
	}
	adminToken := strings.TrimSpace(cfg.DevToken.AdminToken)
	if adminToken == "" {
		return nil, errors.New("dev token admin token is required")
	}
	if len(cfg.Audience) == 0 {
		return nil, errors.New("audience is required for dev token endpoint")
	}

	return &devTokenVendor{
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		kid:        cfg.KID,
		adminToken: adminToken,
		cfg:        cfg.DevToken,
	}, nil
}

func (v *devTokenVendor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, jsonError{Error: "method not allowed"})
		return
	}
	provided := strings.TrimSpace(r.Header.Get(adminTokenHeader))
	if !constantTimeTokenMatch(provided, v.adminToken) {
		writeJSON(w, http.StatusUnauthorized, jsonError{Error: "unauthorized"})
		return
	}

	req, err := decodeDevTokenRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Error: "invalid request body"})
		return
	}
	now := time.Now()
	ttl, err := resolveTokenTTL(v.cfg, req.ExpiresIn)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, jsonError{Error: err.Error()})
		return
	}

	expiresAt := now.Add(ttl)
	signed, err := v.signToken(req, now, expiresAt)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, jsonError{Error: "failed to sign token"})
		return
	}

	if strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/plain") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, signed)
		return
	}

	writeJSON(w, http.StatusOK, devTokenResponse{
		Token:            signed,
		TokenType:        "Bearer",
		ExpiresInSeconds: int64(ttl.Seconds()),
		ExpiresAt:        expiresAt.UTC().Format(time.RFC3339),
	})
}

func (v *devTokenVendor) signToken(req devTokenRequest, now, expiresAt time.Time) (string, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = defaultDevTokenSub
	}
	claims := jwt.MapClaims{
		"iss": v.issuer,
		"sub": subject,
		"aud": v.audience,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
		"nbf": now.Add(-1 * time.Minute).Unix(),
	}
	if role := strings.TrimSpace(req.DBRole); role != "" {
		claims["db_role"] = role
	}
	if roles := normalizeRoles(req.Roles); len(roles) > 0 {
		claims["roles"] = roles
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = v.kid
	return token.SignedString(v.cfg.PrivateKey)
}

// decodeDevTokenRequest parses the request body, tolerating an empty body
// but rejecting unknown fields and trailing JSON documents.
func decodeDevTokenRequest(r *http.Request) (devTokenRequest, error) {
	var req devTokenRequest
	if r == nil || r.Body == nil {
		return req, nil
	}
	defer func() {
		_ = r.Body.Close()
	}()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	switch err := decoder.Decode(&req); {
	case errors.Is(err, io.EOF):
		return devTokenRequest{}, nil
	case err != nil:
		return devTokenRequest{}, err
	}
	if decoder.More() {
		return devTokenRequest{}, errors.New("request body must contain a single JSON object")
	}
	return req, nil
}

func resolveTokenTTL(cfg devTokenConfig, requested string) (time.Duration, error) {
	ttl := cfg.DefaultTTL
	if raw := strings.TrimSpace(requested); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, errors.New("expires_in must be a valid duration")
		}
		ttl = parsed
	}
	if ttl <= 0 {
		return 0, errors.New("expires_in must be greater than 0")
	}
	if ttl > cfg.MaxTTL {
		return 0, fmt.Errorf("expires_in exceeds maximum of %s", cfg.MaxTTL)
	}
	return ttl, nil
}

func normalizeRoles(raw []string) []string {
	return trimNonEmpty(raw)
}

func trimNonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// constantTimeTokenMatch hashes both values first so the comparison is
// constant-time even for tokens of different lengths.
func constantTimeTokenMatch(provided string, expected string) bool {
	providedDigest := sha256.Sum256([]byte(provided))
	expectedDigest := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(providedDigest[:], expectedDigest[:]) == 1
}

// readPEMBlock loads a file and returns the DER bytes of its first PEM block.
func readPEMBlock(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode %s PEM", what)
	}
	return block.Bytes, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	der, err := readPEMBlock(path, "public key")
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}

// loadPrivateKey accepts PKCS#1 and PKCS#8 encoded RSA keys.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	der, err := readPEMBlock(path, "private key")
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}

func buildJWKS(key *rsa.PublicKey, kid string) ([]byte, error) {
	entry := jwk{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(intToBytes(key.E)),
	}
	return json.Marshal(jwks{Keys: []jwk{entry}})
}

// intToBytes renders the RSA public exponent big-endian without leading
// zero bytes.
func intToBytes(value int) []byte {
	if value == 0 {
		return []byte{0}
	}
	return big.NewInt(int64(value)).Bytes()
}

// ensureTLSFiles generates a self-signed localhost certificate pair when one
// is not already present on disk.
func ensureTLSFiles(certPath, keyPath string) error {
	if fileExists(certPath) && fileExists(keyPath) {
		return nil
	}

	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create tls directory: %w", err)
		}
	}

	certPEM, keyPEM, err := generateSelfSignedPair()
	if err != nil {
		return err
	}

	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write tls cert: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write tls key: %w", err)
	}
	return nil
}

func generateSelfSignedPair() (certPEM, keyPEM []byte, err error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tls key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate tls serial: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-1 * time.Minute),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tls certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	return certPEM, keyPEM, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func splitList(value string) []string {
	return trimNonEmpty(strings.Split(value, ","))
}
