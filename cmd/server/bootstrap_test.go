package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/taskflow/internal/app"
	"github.com/charlesng35/taskflow/internal/cache"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg := &app.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "taskflow.sqlite")
	cfg.Auth.JWT.Secret = strings.Repeat("s", 40)
	cfg.Auth.JWT.Issuer = "taskflow-test"
	cfg.Auth.RateLimit.Requests = 10
	cfg.Notifications.RetentionDays = 30
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	return cfg
}

func TestBootstrapRuntime_ServesHealth(t *testing.T) {
	cfg := testConfig(t)
	log := zap.NewNop()

	stack, err := bootstrapRuntime(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), log) })

	require.NotNil(t, stack.Router)
	require.NotNil(t, stack.Cleaner)
	require.Nil(t, stack.Redis)
	require.IsType(t, &cache.DatabaseStore{}, stack.Cache)
	require.NotNil(t, stack.RateStore)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	notified, err := stack.Tasks.SweepOverdue(context.Background())
	require.NoError(t, err)
	require.Zero(t, notified)
}

func TestBootstrapRuntime_FallsBackWhenRedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = "127.0.0.1:1"
	log := zap.NewNop()

	stack, err := bootstrapRuntime(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), log) })

	require.Nil(t, stack.Redis)
	require.IsType(t, &cache.DatabaseStore{}, stack.Cache)
}

func TestBootstrapRuntime_RejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "open database")
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))

	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "  short  "
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = "  " + strings.Repeat("k", 32) + "  "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, strings.Repeat("k", 32), cfg.Auth.JWT.Secret)
}

func TestLoadApplicationConfig_MissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestRun_Help(t *testing.T) {
	err := run(context.Background(), []string{"-h"})
	require.ErrorIs(t, err, flag.ErrHelp)
}
