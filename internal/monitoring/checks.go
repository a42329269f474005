package monitoring

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/invitegate/internal/database"
)

const defaultProbeTimeout = 2 * time.Second

// Pinger is satisfied by the redis cache store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck pings the primary database.
func DatabaseCheck(db *gorm.DB, timeout time.Duration) Check {
	return Check{Name: "database", Run: func(ctx context.Context) ProbeResult {
		if db == nil {
			return ProbeResult{Status: StatusDown, Details: "database not configured"}
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout(timeout))
		defer cancel()
		return ResultFromError(database.Ping(probeCtx, db))
	}}
}

// RedisCheck probes the shared rate-limit cache. Rate limits fall back to the
// database when redis is down, so an enabled but missing client is degraded.
func RedisCheck(client Pinger, enabled bool, timeout time.Duration) Check {
	return Check{Name: "redis", Run: func(ctx context.Context) ProbeResult {
		if !enabled {
			return ProbeResult{Status: StatusUp, Details: "redis disabled"}
		}
		if client == nil {
			return ProbeResult{Status: StatusDegraded, Details: "redis unavailable; using database cache"}
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout(timeout))
		defer cancel()
		result := ResultFromError(client.Ping(probeCtx))
		if result.Status == StatusDown {
			result.Status = StatusDegraded
		}
		return result
	}}
}

// SMSCheck reports whether a delivery transport is configured. Missing SMS
// only disables notification.
func SMSCheck(configured func() bool) Check {
	return Check{Name: "sms", Run: func(context.Context) ProbeResult {
		if configured == nil || !configured() {
			return ProbeResult{Status: StatusDegraded, Details: "sms delivery disabled"}
		}
		return ProbeResult{Status: StatusUp}
	}}
}

func probeTimeout(provided time.Duration) time.Duration {
	if provided <= 0 {
		return defaultProbeTimeout
	}
	return provided
}
