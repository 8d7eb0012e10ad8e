package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBRoleMiddleware(t *testing.T) {
	echoRole := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, ok := DBRoleFromContext(r.Context()); ok {
			w.Header().Set("X-Role", role.Role)
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		claims         map[string]interface{}
		availableRoles []string
		wantStatus     int
		wantRole       string
		wantMessage    string
	}{
		{
			name:        "unauthenticated request",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "missing authentication",
		},
		{
			name:        "claim absent",
			claims:      map[string]interface{}{},
			wantStatus:  http.StatusForbidden,
			wantMessage: "missing db_role claim",
		},
		{
			name:        "claim is not a string",
			claims:      map[string]interface{}{"db_role": 123},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "invalid db_role claim type",
		},
		{
			name:           "role not in allow list",
			claims:         map[string]interface{}{"db_role": "superuser"},
			availableRoles: []string{"app_viewer", "app_analyst"},
			wantStatus:     http.StatusForbidden,
			wantMessage:    "invalid database role: superuser",
		},
		{
			name:           "role accepted",
			claims:         map[string]interface{}{"db_role": "app_analyst"},
			availableRoles: []string{"app_viewer", "app_analyst"},
			wantStatus:     http.StatusOK,
			wantRole:       "app_analyst",
		},
		{
			name:       "validation off accepts unknown role",
			claims:     map[string]interface{}{"db_role": "anything"},
			wantStatus: http.StatusOK,
			wantRole:   "anything",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), authContextKey{}, AuthContext{
					Claims: tt.claims,
				}))
			}

			rec := httptest.NewRecorder()
			mw := DBRoleMiddleware("", len(tt.availableRoles) > 0, tt.availableRoles)
			mw(echoRole).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantRole != "" {
				assert.Equal(t, tt.wantRole, rec.Header().Get("X-Role"))
			}
			if tt.wantMessage != "" {
				var payload struct {
					Errors []struct {
						Message string `json:"message"`
					} `json:"errors"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tt.wantMessage, payload.Errors[0].Message)
			}
		})
	}
}
