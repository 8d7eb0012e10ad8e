package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures Cross-Origin Resource Sharing (CORS) policies.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// corsPolicy is the precomputed form of CORSConfig: origin membership is a
// set lookup and the list-valued headers are joined once at construction.
type corsPolicy struct {
	wildcard         bool
	origins          map[string]struct{}
	methods          string
	headers          string
	expose           string
	maxAge           string
	allowCredentials bool
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins:          make(map[string]struct{}),
		methods:          strings.Join(cfg.AllowedMethods, ", "),
		headers:          strings.Join(cfg.AllowedHeaders, ", "),
		expose:           strings.Join(cfg.ExposeHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if p.wildcard {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CORSMiddleware adds CORS headers and handles preflight requests.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := policy.allows(origin)
			if allowed {
				hdr := w.Header()
				if policy.wildcard {
					hdr.Set("Access-Control-Allow-Origin", "*")
				} else {
					hdr.Set("Access-Control-Allow-Origin", origin)
					hdr.Add("Vary", "Origin")
					// Credentials cannot be combined with a wildcard origin.
					if policy.allowCredentials {
						hdr.Set("Access-Control-Allow-Credentials", "true")
					}
				}
				if policy.expose != "" {
					hdr.Set("Access-Control-Expose-Headers", policy.expose)
				}
			}

			if r.Method == http.MethodOptions {
				if allowed {
					hdr := w.Header()
					if policy.methods != "" {
						hdr.Set("Access-Control-Allow-Methods", policy.methods)
					}
					if policy.headers != "" {
						hdr.Set("Access-Control-Allow-Headers", policy.headers)
					}
					if policy.maxAge != "" {
						hdr.Set("Access-Control-Max-Age", policy.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
