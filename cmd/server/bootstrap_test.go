package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/invitegate/internal/app"
	"github.com/charlesng35/invitegate/internal/database"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	dir := t.TempDir()
	yaml := fmt.Sprintf(`
database:
  driver: sqlite
  path: %q
auth:
  jwt:
    secret: bootstrap-secret
invites:
  quota:
    max_per_month: 5
    timezone: UTC
sms:
  enabled: true
  provider: log
  from: "+15550000000"
maintenance:
  enabled: true
  cache_purge_spec: "@every 1h"
  stats_spec: "@every 1h"
`, filepath.Join(dir, "invitegate.sqlite"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := loadApplicationConfig(dir)
	require.NoError(t, err)
	return cfg
}

func TestBootstrapRuntime(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Router)
	require.NotNil(t, stack.RateStore)
	require.NotNil(t, stack.Cleaner)
	require.Nil(t, stack.Redis)
	require.True(t, stack.Invites.SMSConfigured())

	applied, err := database.CountMigrationsApplied(stack.DB)
	require.NoError(t, err)
	require.Greater(t, applied, int64(0))

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBootstrapRuntimeFallsBackWhenRedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Redis = app.RedisCacheConfig{Enabled: true, Address: "127.0.0.1:1", Timeout: 200 * time.Millisecond}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.Redis)
	require.NotNil(t, stack.RateStore)
}

func TestBootstrapRuntimeRejectsUnknownSMSProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.SMS.Provider = "carrier-pigeon"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "sms")
}

func TestLoadApplicationConfigReadsFile(t *testing.T) {
	cfg := testConfig(t)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 5, cfg.Invites.Quota.MaxPerMonth)
	require.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestRunHelp(t *testing.T) {
	err := run(context.Background(), []string{"-h"})
	require.Error(t, err)
}
