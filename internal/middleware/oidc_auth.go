package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"mysql-graphql/internal/logging"
	"mysql-graphql/internal/observability"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// OIDCAuthConfig controls OIDC/JWKS validation behavior.
type OIDCAuthConfig struct {
	Enabled   bool
	IssuerURL string
	Audience  string
	ClockSkew time.Duration

	// CAFile adds a CA certificate to the trust pool used for discovery and
	// JWKS fetches, for issuers with private PKI.
	CAFile string

	// SkipTLSVerify disables certificate verification entirely. Test-only;
	// there is no configuration key for it.
	SkipTLSVerify bool
}

type authContextKey struct{}

// AuthContext carries validated JWT claims.
type AuthContext struct {
	Subject  string
	Issuer   string
	Audience []string
	Claims   map[string]interface{}
}

// WithAuthContext returns a context carrying the given auth context.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext returns the auth context from a request context.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

// oidcGate verifies bearer tokens against a single issuer and audience.
type oidcGate struct {
	cfg      OIDCAuthConfig
	verifier *oidc.IDTokenVerifier
	logger   *logging.Logger
	metrics  *observability.SecurityMetrics
}

// authFailure describes why a token was rejected: reason feeds the security
// metrics, body is the client-visible error string.
type authFailure struct {
	reason  string
	body    string
	logMsg  string
	cause   error
	spoofed bool // reason also counts as an unauthorized access attempt
}

// OIDCAuthMiddleware validates Bearer tokens when enabled.
// Optional securityMetrics parameter enables security monitoring; pass nil to disable.
func OIDCAuthMiddleware(cfg OIDCAuthConfig, logger *logging.Logger, securityMetrics ...*observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	if cfg.IssuerURL == "" || cfg.Audience == "" {
		return nil, errors.New("oidc auth enabled but issuer/audience not configured")
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = 2 * time.Minute
	}

	issuerURL, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oidc issuer url: %w", err)
	}
	if issuerURL.Scheme != "https" {
		return nil, errors.New("oidc issuer url must use https")
	}
	if logger != nil && cfg.SkipTLSVerify {
		logger.Warn("oidc tls verification is disabled; enable only for local development",
			"issuer", cfg.IssuerURL,
		)
	}

	// Discovery and JWKS fetches go through this client; the oauth2 context
	// key is how go-oidc picks it up.
	httpClient, err := newOIDCHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	discoveryCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	provider, err := oidc.NewProvider(discoveryCtx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oidc provider: %w", err)
	}

	gate := &oidcGate{
		cfg:      cfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.Audience}),
		logger:   logger,
	}
	if len(securityMetrics) > 0 {
		gate.metrics = securityMetrics[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate.metrics != nil {
				gate.metrics.RecordAuthAttempt(r.Context(), r.URL.Path)
			}

			auth, failure := gate.authenticate(r)
			if failure != nil {
				gate.reject(w, r, failure)
				return
			}

			if gate.metrics != nil {
				gate.metrics.RecordAuthSuccess(r.Context(), r.URL.Path, cfg.IssuerURL)
			}
			if gate.logger != nil {
				logging.FromContext(r.Context()).Debug("authentication successful",
					slog.String("subject", auth.Subject),
					slog.String("issuer", cfg.IssuerURL),
					slog.String("endpoint", r.URL.Path),
				)
			}
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", auth.Subject),
					attribute.String("auth.issuer", cfg.IssuerURL),
					attribute.Bool("auth.authenticated", true),
				)
				if len(auth.Audience) > 0 {
					span.SetAttributes(attribute.StringSlice("auth.audience", auth.Audience))
				}
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// authenticate runs the full token check and returns either a populated
// AuthContext or the failure to report.
func (g *oidcGate) authenticate(r *http.Request) (AuthContext, *authFailure) {
	raw := bearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		return AuthContext{}, &authFailure{
			reason:  "missing_token",
			body:    "missing bearer token",
			logMsg:  "authentication failed: missing bearer token",
			spoofed: true,
		}
	}

	idToken, err := g.verifier.Verify(r.Context(), raw)
	if err != nil {
		return AuthContext{}, &authFailure{
			reason:  "token_verification_failed",
			body:    "invalid token",
			logMsg:  "oidc token validation failed",
			cause:   err,
			spoofed: true,
		}
	}

	claims := map[string]interface{}{}
	if err := idToken.Claims(&claims); err != nil {
		return AuthContext{}, &authFailure{
			reason: "claims_parse_failed",
			body:   "invalid token claims",
			logMsg: "oidc token claims parse failed",
			cause:  err,
		}
	}

	if err := validateTimeClaims(claims, g.cfg.ClockSkew); err != nil {
		return AuthContext{}, &authFailure{
			reason: "time_validation_failed",
			body:   "invalid token",
			logMsg: "oidc token time validation failed",
			cause:  err,
		}
	}

	subject, _ := claims["sub"].(string)
	return AuthContext{
		Subject:  subject,
		Issuer:   g.cfg.IssuerURL,
		Audience: extractAudience(claims),
		Claims:   claims,
	}, nil
}

func (g *oidcGate) reject(w http.ResponseWriter, r *http.Request, f *authFailure) {
	endpoint := r.URL.Path
	if g.metrics != nil {
		g.metrics.RecordAuthFailure(r.Context(), endpoint, f.reason)
		if f.reason != "missing_token" {
			g.metrics.RecordTokenValidationError(r.Context(), valErrorName(f.reason))
		}
		if f.spoofed {
			attempt := "invalid_token"
			if f.reason == "missing_token" {
				attempt = "missing_token"
			}
			g.metrics.RecordUnauthorizedAttempt(r.Context(), endpoint, attempt)
		}
	}
	if g.logger != nil {
		attrs := []any{
			slog.String("endpoint", endpoint),
			slog.String("remote_addr", r.RemoteAddr),
		}
		if f.cause != nil {
			attrs = append([]any{slog.String("error", f.cause.Error())}, attrs...)
		}
		logging.FromContext(r.Context()).Warn(f.logMsg, attrs...)
	}

	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":"%s"}`, f.body)
}

// newOIDCHTTPClient builds the HTTP client used for issuer discovery and key
// fetches, honoring a custom CA file when configured.
func newOIDCHTTPClient(cfg OIDCAuthConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify}
	if cfg.CAFile != "" {
		pemBytes, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read oidc ca file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("no certificates found in oidc ca file %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
		Timeout:   10 * time.Second,
	}, nil
}

func valErrorName(reason string) string {
	if reason == "token_verification_failed" {
		return "verification_failed"
	}
	return reason
}

func bearerToken(value string) string {
	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// validateTimeClaims re-checks exp/nbf with the configured skew. The verifier
// already enforces expiry, but without tolerance for clock drift.
func validateTimeClaims(claims map[string]interface{}, skew time.Duration) error {
	if skew <= 0 {
		return nil
	}

	now := time.Now()
	if exp, ok := numericDate(claims["exp"]); ok && now.After(exp.Add(skew)) {
		return errors.New("token expired")
	}
	if nbf, ok := numericDate(claims["nbf"]); ok && now.Add(skew).Before(nbf) {
		return errors.New("token not valid yet")
	}
	return nil
}

// numericDate accepts the various encodings JSON decoders produce for a JWT
// NumericDate claim.
func numericDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	default:
		return time.Time{}, false
	}
}

func extractAudience(claims map[string]interface{}) []string {
	switch val := claims["aud"].(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
