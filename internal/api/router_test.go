package api_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskflow/internal/api"
	"github.com/charlesng35/taskflow/internal/app"
	"github.com/charlesng35/taskflow/internal/handlers/testutil"
	"github.com/charlesng35/taskflow/internal/middleware"
)

func TestRouter_HealthIsPublic(t *testing.T) {
	env := testutil.NewEnv(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := env.Request(http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, w.Code, path)

		resp := testutil.DecodeResponse(t, w)
		require.True(t, resp.Success)
		var data map[string]any
		testutil.DecodeInto(t, resp.Data, &data)
		require.Equal(t, "ok", data["status"])
		require.Equal(t, "ok", data["database"])
	}
}

func TestRouter_HealthReportsUnavailableDatabase(t *testing.T) {
	env := testutil.NewEnv(t)
	sqlDB, err := env.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "5", w.Header().Get("Retry-After"))

	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "STORE_UNAVAILABLE", resp.Error.Code)
	require.True(t, resp.Error.Retryable)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	env := testutil.NewEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/tasks"},
		{http.MethodPost, "/api/tasks"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodGet, "/api/notifications/unread-count"},
		{http.MethodPut, "/api/notifications/mark-all-read"},
	}

	for _, route := range routes {
		w := env.Request(route.method, route.path, nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code, route.method+" "+route.path)
		require.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
	}

	w := env.Request(http.MethodGet, "/api/tasks", nil, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_SecurityHeadersAndNotFound(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/does-not-exist", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "ROUTE_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	env.Request(http.MethodGet, "/health", nil, "")
	w := env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "taskflow_"), "expected taskflow metrics to be exported")
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	env := testutil.NewEnv(t)

	_, err := api.NewRouter(nil, env.JWT, env.Config, env.Services, middleware.NewMemoryRateStore())
	require.Error(t, err)

	_, err = api.NewRouter(env.DB, nil, env.Config, env.Services, middleware.NewMemoryRateStore())
	require.Error(t, err)

	_, err = api.NewRouter(env.DB, env.JWT, nil, env.Services, middleware.NewMemoryRateStore())
	require.Error(t, err)

	_, err = api.NewRouter(env.DB, env.JWT, &app.Config{}, api.Services{}, nil)
	require.Error(t, err)
}
