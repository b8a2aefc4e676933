package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"bizops-analytics/internal/auth"

	"github.com/goccy/go-json"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID      string
	Role        auth.UserRole
	Email       string
	BusinessID  string
	Permissions []string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// requestToken reads the bearer header, falling back to ?token= for websocket upgrades.
func requestToken(r *http.Request) string {
	if token := auth.ParseBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// BusinessAuth verifies the access token and pins the request to one tenant.
// Business tokens carry their tenant; admin and service tokens name it with
// ?businessId=.
func BusinessAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.VerifyAccessToken(requestToken(r), jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Authorization token required", err.Error())
				return
			}

			businessID := claims.TenantID()
			switch claims.Role {
			case auth.RoleBusinessOwner, auth.RoleBusinessStaff:
				if businessID == "" {
					writeAuthError(w, http.StatusUnauthorized, "Business not found")
					return
				}
				if requested := strings.TrimSpace(r.URL.Query().Get("businessId")); requested != "" && requested != businessID {
					writeAuthError(w, http.StatusForbidden, "Business access denied")
					return
				}
			case auth.RoleSuperAdmin, auth.RoleService:
				if requested := strings.TrimSpace(r.URL.Query().Get("businessId")); requested != "" {
					businessID = requested
				}
				if businessID == "" {
					writeAuthError(w, http.StatusBadRequest, "businessId is required")
					return
				}
			default:
				writeAuthError(w, http.StatusForbidden, "Analytics access required")
				return
			}

			if perm := auth.GetPermissionForAPI(r.URL.Path, r.Method); perm != nil {
				if !auth.HasPermission(claims.Role, claims.Permissions, *perm) {
					writeAuthError(w, http.StatusForbidden, "You do not have permission to access this resource")
					return
				}
			}

			authCtx := &AuthContext{
				UserID:      claims.UserID,
				Role:        claims.Role,
				Email:       claims.Email,
				BusinessID:  businessID,
				Permissions: claims.Permissions,
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}
