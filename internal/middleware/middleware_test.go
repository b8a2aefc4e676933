package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bizops-analytics/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func tokenFor(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token, err := auth.IssueAccessToken(claims, testSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func strPtr(v string) *string { return &v }

func echoBusiness() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, ok := GetAuthContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(authCtx.BusinessID))
	})
}

func TestBusinessAuth(t *testing.T) {
	owner := auth.Claims{UserID: "u1", Role: auth.RoleBusinessOwner, BusinessID: strPtr("B1")}
	staff := auth.Claims{UserID: "u2", Role: auth.RoleBusinessStaff, BusinessID: strPtr("B1"), Permissions: []string{"analytics_items"}}
	admin := auth.Claims{UserID: "u3", Role: auth.RoleSuperAdmin}

	tests := []struct {
		name       string
		target     string
		token      string
		wantStatus int
		wantBody   string
	}{
		{name: "missing token", target: "/api/analytics/sales/revenue", wantStatus: http.StatusUnauthorized},
		{name: "owner scoped to own business", target: "/api/analytics/sales/revenue", token: tokenFor(t, owner), wantStatus: http.StatusOK, wantBody: "B1"},
		{name: "owner cannot switch business", target: "/api/analytics/sales/revenue?businessId=B2", token: tokenFor(t, owner), wantStatus: http.StatusForbidden},
		{name: "staff without permission", target: "/api/analytics/sales/revenue", token: tokenFor(t, staff), wantStatus: http.StatusForbidden},
		{name: "staff with permission", target: "/api/analytics/items/popular", token: tokenFor(t, staff), wantStatus: http.StatusOK, wantBody: "B1"},
		{name: "admin names business", target: "/api/analytics/sales/revenue?businessId=B7", token: tokenFor(t, admin), wantStatus: http.StatusOK, wantBody: "B7"},
		{name: "admin without business", target: "/api/analytics/sales/revenue", token: tokenFor(t, admin), wantStatus: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			BusinessAuth(testSecret)(echoBusiness()).ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantBody != "" {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestBusinessAuthQueryToken(t *testing.T) {
	token := tokenFor(t, auth.Claims{UserID: "u1", Role: auth.RoleBusinessOwner, BusinessID: strPtr("B1")})
	req := httptest.NewRequest(http.MethodGet, "/ws/analytics/dashboard?token="+token, nil)
	rec := httptest.NewRecorder()
	BusinessAuth(testSecret)(echoBusiness()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "B1", rec.Body.String())
}

func TestCronAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{name: "disabled", secret: "", header: "Bearer x", want: http.StatusForbidden},
		{name: "wrong token", secret: "s3", header: "Bearer x", want: http.StatusUnauthorized},
		{name: "valid", secret: "s3", header: "Bearer s3", want: http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/cache/flush", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()
			CronAuth(tc.secret)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-Id", "corr-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "corr-1", seen)
}

func TestTenantRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := TenantRateLimit(2, time.Minute)(ok)

	call := func(business string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/analytics/sales/revenue", nil)
		req = req.WithContext(WithAuthContext(req.Context(), &AuthContext{BusinessID: business}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("B1"))
	assert.Equal(t, http.StatusNoContent, call("B1"))
	assert.Equal(t, http.StatusTooManyRequests, call("B1"))
	assert.Equal(t, http.StatusNoContent, call("B2"))

	disabled := TenantRateLimit(0, time.Minute)(ok)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
