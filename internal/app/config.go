package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/invitegate/internal/models"
	"github.com/charlesng35/invitegate/internal/services"
)

// Config represents the runtime configuration for the invitegate service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Invites     InvitesConfig     `mapstructure:"invites"`
	SMS         SMSConfig         `mapstructure:"sms"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int             `mapstructure:"port"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig is a fixed-window request budget. Zero requests disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig enables metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// TracingConfig toggles request spans. Spans are only exported when a tracer
// provider is installed globally.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures bearer token validation.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// InvitesConfig holds the invite code policy.
type InvitesConfig struct {
	CodeLength          int           `mapstructure:"code_length"`
	Validity            time.Duration `mapstructure:"validity"`
	MaxGenerateAttempts int           `mapstructure:"max_generate_attempts"`
	MinRedeemLength     int           `mapstructure:"min_redeem_length"`
	MaxRedeemLength     int           `mapstructure:"max_redeem_length"`
	Quota               QuotaConfig   `mapstructure:"quota"`
	List                ListConfig    `mapstructure:"list"`
}

// QuotaConfig bounds codes per user per calendar month.
type QuotaConfig struct {
	MaxPerMonth int    `mapstructure:"max_per_month"`
	Timezone    string `mapstructure:"timezone"`
}

// ListConfig bounds admin listing pages.
type ListConfig struct {
	MaxLimit int `mapstructure:"max_limit"`
}

// SMSConfig configures outbound invite notifications.
type SMSConfig struct {
	Enabled        bool            `mapstructure:"enabled"`
	Provider       string          `mapstructure:"provider"`
	From           string          `mapstructure:"from"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	Twilio         TwilioConfig    `mapstructure:"twilio"`
	MaxAttempts    int             `mapstructure:"max_attempts"`
	BaseDelay      time.Duration   `mapstructure:"base_delay"`
	AttemptTimeout time.Duration   `mapstructure:"attempt_timeout"`
	RatePerSecond  float64         `mapstructure:"rate_per_second"`
	Burst          int             `mapstructure:"burst"`
	NotifyLimit    RateLimitConfig `mapstructure:"notify_limit"`
}

// TwilioConfig holds Twilio REST credentials.
type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	BaseURL    string `mapstructure:"base_url"`
}

// MaintenanceConfig schedules background jobs.
type MaintenanceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	CachePurgeSpec string `mapstructure:"cache_purge_spec"`
	StatsSpec      string `mapstructure:"stats_spec"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("INVITEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	inv := c.Invites
	if inv.MinRedeemLength > 0 && inv.MaxRedeemLength > 0 && inv.MinRedeemLength > inv.MaxRedeemLength {
		return fmt.Errorf("config: invites.min_redeem_length (%d) exceeds invites.max_redeem_length (%d)", inv.MinRedeemLength, inv.MaxRedeemLength)
	}
	if inv.CodeLength > 0 && inv.MaxRedeemLength > 0 && (inv.CodeLength > inv.MaxRedeemLength || inv.CodeLength < inv.MinRedeemLength) {
		return fmt.Errorf("config: invites.code_length (%d) must lie within the redeem length bounds", inv.CodeLength)
	}
	if inv.CodeLength > models.MaxCodeLength || inv.MaxRedeemLength > models.MaxCodeLength {
		return fmt.Errorf("config: invite codes are stored in %d characters; code_length (%d) and max_redeem_length (%d) must not exceed it",
			models.MaxCodeLength, inv.CodeLength, inv.MaxRedeemLength)
	}
	if inv.List.MaxLimit > services.MaxListLimit {
		return fmt.Errorf("config: invites.list.max_limit (%d) exceeds %d", inv.List.MaxLimit, services.MaxListLimit)
	}
	if _, err := c.Invites.QuotaLocation(); err != nil {
		return err
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/invitegate.sqlite")
	v.SetDefault("database.query_timeout", "5s")
	v.SetDefault("database.connect_timeout", "30s")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "invitegate")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("invites.code_length", 8)
	v.SetDefault("invites.validity", "720h") // 30 days
	v.SetDefault("invites.max_generate_attempts", 10)
	v.SetDefault("invites.min_redeem_length", 6)
	v.SetDefault("invites.max_redeem_length", 20)
	v.SetDefault("invites.quota.max_per_month", 3)
	v.SetDefault("invites.quota.timezone", "Local")
	v.SetDefault("invites.list.max_limit", 50)

	v.SetDefault("sms.enabled", false)
	v.SetDefault("sms.provider", "twilio")
	v.SetDefault("sms.from", "")
	v.SetDefault("sms.timeout", "10s")
	v.SetDefault("sms.twilio.account_sid", "")
	v.SetDefault("sms.twilio.auth_token", "")
	v.SetDefault("sms.twilio.base_url", "")
	v.SetDefault("sms.max_attempts", 3)
	v.SetDefault("sms.base_delay", "1s")
	v.SetDefault("sms.attempt_timeout", "10s")
	v.SetDefault("sms.rate_per_second", 0)
	v.SetDefault("sms.burst", 1)
	v.SetDefault("sms.notify_limit.requests", 5)
	v.SetDefault("sms.notify_limit.window", "1h")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.cache_purge_spec", "@every 5m")
	v.SetDefault("maintenance.stats_spec", "@every 1m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
