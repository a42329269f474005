package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/invitegate/internal/database/testutil"
	"github.com/charlesng35/invitegate/internal/monitoring"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthManagerEvaluate(t *testing.T) {
	manager := monitoring.NewHealthManager(
		monitoring.Check{Name: "ok", Run: func(context.Context) monitoring.ProbeResult {
			return monitoring.ProbeResult{Status: monitoring.StatusUp}
		}},
		monitoring.Check{Name: "slow", Run: func(context.Context) monitoring.ProbeResult {
			return monitoring.ResultFromError(context.DeadlineExceeded)
		}},
	)

	report := manager.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.True(t, report.Healthy())
	require.Len(t, report.Checks, 2)
	require.Equal(t, "ok", report.Checks[0].Component)
	require.Equal(t, "slow", report.Checks[1].Component)

	manager.Register(monitoring.Check{Name: "broken", Run: func(context.Context) monitoring.ProbeResult {
		return monitoring.ResultFromError(errors.New("boom"))
	}})
	report = manager.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.False(t, report.Healthy())
	require.Equal(t, "boom", report.Checks[2].Details)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	manager := monitoring.NewHealthManager(monitoring.Check{Name: "panics", Run: func(context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}})

	report := manager.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "panics", report.Checks[0].Component)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
}

func TestHealthManagerIgnoresIncompleteChecks(t *testing.T) {
	manager := monitoring.NewHealthManager(monitoring.Check{Name: "nil-run"}, monitoring.Check{})
	report := manager.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Empty(t, report.Checks)
}

func TestDatabaseCheck(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	result := monitoring.DatabaseCheck(db, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	result = monitoring.DatabaseCheck(nil, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}

func TestRedisCheck(t *testing.T) {
	ctx := context.Background()

	require.Equal(t, monitoring.StatusUp, monitoring.RedisCheck(nil, false, 0).Run(ctx).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.RedisCheck(nil, true, 0).Run(ctx).Status)
	require.Equal(t, monitoring.StatusUp, monitoring.RedisCheck(fakePinger{}, true, 0).Run(ctx).Status)

	result := monitoring.RedisCheck(fakePinger{err: errors.New("connection refused")}, true, 0).Run(ctx)
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "connection refused")
}

func TestSMSCheck(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, monitoring.StatusUp, monitoring.SMSCheck(func() bool { return true }).Run(ctx).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.SMSCheck(func() bool { return false }).Run(ctx).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.SMSCheck(nil).Run(ctx).Status)
}
