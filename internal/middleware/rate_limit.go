package middleware

import (
	"net/http"
	"time"

	"bizops-analytics/pkg/response"

	"github.com/go-chi/httprate"
)

// TenantRateLimit limits requests per business. It must run after BusinessAuth;
// requests without a tenant are keyed by client IP.
func TenantRateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(tenantKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many analytics requests")
		}),
	)
}

func tenantKey(r *http.Request) (string, error) {
	if authCtx, ok := GetAuthContext(r.Context()); ok && authCtx.BusinessID != "" {
		return "business:" + authCtx.BusinessID, nil
	}
	return httprate.KeyByIP(r)
}
