package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/invitegate/internal/models"
	"github.com/charlesng35/invitegate/internal/repository"
	"github.com/charlesng35/invitegate/pkg/logger"
	"github.com/charlesng35/invitegate/pkg/metrics"
)

const (
	defaultPurgeSpec = "@every 5m"
	defaultStatsSpec = "@every 1m"
	jobTimeout       = 30 * time.Second
)

// CachePurger removes expired cache rows.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance tasks: purging expired cache
// entries and refreshing the invite state gauges. Invite codes themselves are
// never deleted here.
type Cleaner struct {
	cache   CachePurger
	stats   repository.InviteStats
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	enabled bool

	purgeSchedule string
	statsSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used to derive invite states.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithPurgeSchedule overrides the cron specification for cache purging.
func WithPurgeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.purgeSchedule = spec
		}
	}
}

// WithStatsSchedule overrides the cron specification for gauge refreshes.
func WithStatsSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.statsSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(cache CachePurger, stats repository.InviteStats, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		cache:         cache,
		stats:         stats,
		now:           time.Now,
		purgeSchedule: defaultPurgeSpec,
		statsSchedule: defaultStatsSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.cache != nil || cleaner.stats != nil

	return cleaner
}

// Start registers jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.purgeSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := c.purgeCache(ctx); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.stats != nil {
		if _, err := c.cron.AddFunc(c.statsSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := c.refreshStats(ctx); err != nil {
				c.log.Warn("invite stats refresh failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used at startup and in tests.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.cache != nil {
		errs = multierr.Append(errs, c.purgeCache(ctx))
	}
	if c.stats != nil {
		errs = multierr.Append(errs, c.refreshStats(ctx))
	}
	return errs
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	removed, err := c.cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("purged expired cache entries", zap.Int64("removed", removed))
	}
	return nil
}

func (c *Cleaner) refreshStats(ctx context.Context) error {
	counts, err := c.stats.CountStates(ctx, c.now())
	if err != nil {
		return err
	}
	metrics.InviteStates.WithLabelValues(string(models.InviteStateActive)).Set(float64(counts.Active))
	metrics.InviteStates.WithLabelValues(string(models.InviteStateRedeemed)).Set(float64(counts.Redeemed))
	metrics.InviteStates.WithLabelValues(string(models.InviteStateExpired)).Set(float64(counts.Expired))
	return nil
}
