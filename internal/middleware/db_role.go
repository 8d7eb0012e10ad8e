package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type dbRoleContextKey struct{}

// DBRoleContext carries validated database role information.
type DBRoleContext struct {
	Role      string
	Validated bool
}

// WithDBRole attaches the database role to the request context.
func WithDBRole(ctx context.Context, role string, validated bool) context.Context {
	return context.WithValue(ctx, dbRoleContextKey{}, DBRoleContext{
		Role:      role,
		Validated: validated,
	})
}

// DBRoleFromContext extracts the database role from context.
func DBRoleFromContext(ctx context.Context) (DBRoleContext, bool) {
	role, ok := ctx.Value(dbRoleContextKey{}).(DBRoleContext)
	return role, ok
}

// roleRejection is a request-terminating failure rendered as a GraphQL-style
// error envelope.
type roleRejection struct {
	status  int
	message string
	code    string
}

func (e *roleRejection) write(w http.ResponseWriter) {
	payload := map[string]any{
		"errors": []map[string]any{
			{
				"message":    e.message,
				"extensions": map[string]any{"code": e.code},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.status)
	_ = json.NewEncoder(w).Encode(payload)
}

// DBRoleMiddleware extracts and validates db_role claims from JWTs.
func DBRoleMiddleware(claimName string, validate bool, availableRoles []string) func(http.Handler) http.Handler {
	if claimName == "" {
		claimName = "db_role"
	}

	allowed := make(map[string]struct{}, len(availableRoles))
	for _, role := range availableRoles {
		allowed[role] = struct{}{}
	}

	extractRole := func(r *http.Request) (string, *roleRejection) {
		authCtx, ok := AuthFromContext(r.Context())
		if !ok {
			return "", &roleRejection{http.StatusUnauthorized, "missing authentication", "UNAUTHENTICATED"}
		}
		raw, ok := authCtx.Claims[claimName]
		if !ok {
			return "", &roleRejection{http.StatusForbidden, "missing db_role claim", "FORBIDDEN"}
		}
		role, ok := raw.(string)
		if !ok {
			return "", &roleRejection{http.StatusBadRequest, "invalid db_role claim type", "BAD_REQUEST"}
		}
		if validate {
			if _, known := allowed[role]; !known {
				return "", &roleRejection{http.StatusForbidden, fmt.Sprintf("invalid database role: %s", role), "FORBIDDEN"}
			}
		}
		return role, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, rej := extractRole(r)
			if rej != nil {
				rej.write(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDBRole(r.Context(), role, true)))
		})
	}
}
