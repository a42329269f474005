package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/invitegate/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "console", cfg.Server.LogFormat)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
	require.Equal(t, 50, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 3*time.Second, cfg.Database.QueryTimeout)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 2, cfg.Cache.Redis.DB)

	require.True(t, cfg.Tracing.Enabled)
	require.Equal(t, "invitegate-test", cfg.Tracing.ServiceName)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.Equal(t, 10, cfg.Invites.CodeLength)
	require.Equal(t, 7*24*time.Hour, cfg.Invites.Validity)
	require.Equal(t, 3, cfg.Invites.Quota.MaxPerMonth)
	require.Equal(t, 25, cfg.Invites.List.MaxLimit)

	require.True(t, cfg.SMS.Enabled)
	require.Equal(t, "+15550000000", cfg.SMS.From)
	require.Equal(t, 4, cfg.SMS.MaxAttempts)
	require.Equal(t, 2*time.Second, cfg.SMS.BaseDelay)
	require.InDelta(t, 2.5, cfg.SMS.RatePerSecond, 0.0001)
	require.Equal(t, 2, cfg.SMS.NotifyLimit.Requests)

	// Unset keys keep their defaults.
	require.Equal(t, "@every 10m", cfg.Maintenance.CachePurgeSpec)
	require.Equal(t, "@every 1m", cfg.Maintenance.StatsSpec)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	require.Equal(t, 8, cfg.Invites.CodeLength)
	require.Equal(t, 30*24*time.Hour, cfg.Invites.Validity)
	require.Equal(t, 3, cfg.Invites.Quota.MaxPerMonth)
	require.Equal(t, 50, cfg.Invites.List.MaxLimit)
	require.Equal(t, 3, cfg.SMS.MaxAttempts)
	require.Equal(t, time.Second, cfg.SMS.BaseDelay)
	require.False(t, cfg.SMS.Enabled)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("INVITEGATE_INVITES_QUOTA_MAX_PER_MONTH", "42")
	t.Setenv("INVITEGATE_SMS_ENABLED", "true")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Invites.Quota.MaxPerMonth)
	require.True(t, cfg.SMS.Enabled)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Invites: InvitesConfig{MinRedeemLength: 12, MaxRedeemLength: 6}}
	require.Error(t, cfg.Validate())

	cfg = Config{Invites: InvitesConfig{CodeLength: 30, MinRedeemLength: 6, MaxRedeemLength: 20}}
	require.Error(t, cfg.Validate())

	cfg = Config{Invites: InvitesConfig{MinRedeemLength: 6, MaxRedeemLength: 32}}
	require.ErrorContains(t, cfg.Validate(), "must not exceed")

	cfg = Config{Invites: InvitesConfig{CodeLength: 24}}
	require.ErrorContains(t, cfg.Validate(), "must not exceed")

	cfg = Config{Invites: InvitesConfig{List: ListConfig{MaxLimit: 51}}}
	require.ErrorContains(t, cfg.Validate(), "max_limit")

	cfg = Config{Invites: InvitesConfig{List: ListConfig{MaxLimit: 50}}}
	require.NoError(t, cfg.Validate())

	cfg = Config{Invites: InvitesConfig{Quota: QuotaConfig{Timezone: "Mars/Olympus"}}}
	require.Error(t, cfg.Validate())

	cfg = Config{Invites: InvitesConfig{CodeLength: 8, MinRedeemLength: 6, MaxRedeemLength: 20}}
	require.NoError(t, cfg.Validate())
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: " secret ", Issuer: "identity"}}
	jwtCfg := cfg.JWTServiceConfig()
	require.Equal(t, "secret", jwtCfg.Secret)
	require.Equal(t, "identity", jwtCfg.Issuer)
	require.Equal(t, auth.DefaultAccessTokenTTL, jwtCfg.AccessTokenTTL)
}

func TestDatabaseConnectionConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "PostgreSQL",
		Postgres: DBAuthConfig{
			Host:     " db ",
			Port:     5432,
			Database: "invites",
			Username: "gate",
			Password: " keep spaces ",
		},
		MySQL: DBAuthConfig{Host: "ignored"},
	}
	dbCfg := cfg.ConnectionConfig()
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db", dbCfg.Host)
	require.Equal(t, "invites", dbCfg.Name)
	require.Equal(t, " keep spaces ", dbCfg.Password)

	require.Equal(t, "sqlite", DatabaseConfig{}.ConnectionConfig().Driver)
	require.Equal(t, "oracle", DatabaseConfig{Driver: "oracle"}.ConnectionConfig().Driver)
}

func TestInvitesQuotaLocation(t *testing.T) {
	loc, err := InvitesConfig{Quota: QuotaConfig{Timezone: "UTC"}}.QuotaLocation()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)

	loc, err = InvitesConfig{}.QuotaLocation()
	require.NoError(t, err)
	require.Equal(t, time.Local, loc)
}

func TestSMSConfigAdapters(t *testing.T) {
	cfg := SMSConfig{
		Enabled:       true,
		Provider:      " Twilio ",
		From:          " +15550000000 ",
		Twilio:        TwilioConfig{AccountSID: "AC1", AuthToken: "tok"},
		MaxAttempts:   4,
		BaseDelay:     2 * time.Second,
		RatePerSecond: 1,
	}

	settings := cfg.SenderSettings()
	require.Equal(t, "twilio", settings.Provider)
	require.Equal(t, "+15550000000", settings.From)
	require.Equal(t, "AC1", settings.Twilio.AccountSID)

	policy := cfg.Policy()
	require.Equal(t, 4, policy.MaxAttempts)
	require.Equal(t, 2*time.Second, policy.BaseDelay)

	require.Len(t, cfg.DispatcherOptions(), 2)
	cfg.RatePerSecond = 0
	require.Len(t, cfg.DispatcherOptions(), 1)
}
