package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/supratours/virements/internal/observability"
	"github.com/supratours/virements/internal/rbac"
	"github.com/supratours/virements/internal/shared"
	_ "github.com/supratours/virements/testing"
)

type staticPermissions map[int64][]string

func (s staticPermissions) EffectivePermissions(_ context.Context, userID int64) ([]string, error) {
	return s[userID], nil
}

func newTestRouter(t *testing.T) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "virements_session", time.Hour, false)
	router := NewRouter(RouterParams{
		Config:         &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager: sessions,
		Metrics:        observability.NewMetrics(),
		RBAC:           rbac.Middleware{Service: staticPermissions{2: {rbac.PermPayablesView}}},
	})
	return router, sessions
}

func bearer(t *testing.T, sessions *shared.SessionManager, id int64) string {
	t.Helper()
	sess, err := sessions.Create(context.Background(), httptest.NewRecorder(), shared.Actor{ID: id, Email: "u@supratours.ma"})
	require.NoError(t, err)
	return "Bearer " + sess.ID
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestUnknownRouteIsProblem(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "json")
}

func TestAPIRequiresSessionAndPermission(t *testing.T) {
	router, sessions := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lookups/invoices", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/lookups/invoices", nil)
	req.Header.Set("Authorization", bearer(t, sessions, 1))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Permission granted but no payables handler mounted.
	req = httptest.NewRequest(http.MethodGet, "/api/lookups/invoices", nil)
	req.Header.Set("Authorization", bearer(t, sessions, 2))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	router, _ := newTestRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "virements_http_requests_total")
}
