package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/invitegate/internal/api"
	"github.com/charlesng35/invitegate/internal/app"
	"github.com/charlesng35/invitegate/internal/app/maintenance"
	iauth "github.com/charlesng35/invitegate/internal/auth"
	"github.com/charlesng35/invitegate/internal/cache"
	"github.com/charlesng35/invitegate/internal/database"
	"github.com/charlesng35/invitegate/internal/middleware"
	"github.com/charlesng35/invitegate/internal/monitoring"
	"github.com/charlesng35/invitegate/internal/notifications"
	"github.com/charlesng35/invitegate/internal/repository"
	"github.com/charlesng35/invitegate/internal/services"
	"github.com/charlesng35/invitegate/pkg/logger"
	"github.com/charlesng35/invitegate/pkg/sms"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Store     *repository.GormStore
	Invites   *services.InviteService
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises databases, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed rate limits", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewCacheRateStore(stack.Redis)
	default:
		stack.RateStore = middleware.NewCacheRateStore(dbStore)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Store, err = repository.NewGormStore(stack.DB, repository.WithQueryTimeout(cfg.Database.QueryTimeout))
	if err != nil {
		return nil, fmt.Errorf("initialise invite store: %w", err)
	}

	stack.Invites, err = buildInviteService(cfg, stack.Store, log)
	if err != nil {
		return nil, err
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(dbStore, stack.Store,
			maintenance.WithPurgeSchedule(cfg.Maintenance.CachePurgeSpec),
			maintenance.WithStatsSchedule(cfg.Maintenance.StatsSpec),
		)
		if err := stack.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("initial maintenance run failed", zap.Error(err))
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	var redisPinger monitoring.Pinger
	if stack.Redis != nil {
		redisPinger = stack.Redis
	}
	redisProbe := monitoring.RedisCheck(redisPinger, cfg.Cache.Redis.Enabled, cfg.Cache.Redis.Timeout)

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, stack.Invites, stack.RateStore, redisProbe)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func buildInviteService(cfg *app.Config, store *repository.GormStore, log *zap.Logger) (*services.InviteService, error) {
	loc, err := cfg.Invites.QuotaLocation()
	if err != nil {
		return nil, err
	}
	quota, err := services.NewQuotaTracker(store, cfg.Invites.Quota.MaxPerMonth, services.WithQuotaLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("initialise quota tracker: %w", err)
	}

	sender, err := sms.NewSender(cfg.SMS.SenderSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise sms sender: %w", err)
	}
	if !sms.Configured(sender) {
		log.Info("sms delivery disabled")
	}
	dispatcher := notifications.NewDispatcher(sender, cfg.SMS.DispatcherOptions()...)

	opts := cfg.Invites.ServiceOptions()
	opts = append(opts,
		services.WithQuota(quota),
		services.WithDispatcher(dispatcher, cfg.SMS.Policy()),
		services.WithDeliveryStore(store),
	)
	if cfg.Tracing.Enabled {
		opts = append(opts, services.WithTracer(otel.Tracer(cfg.Tracing.ServiceName)))
	}

	invites, err := services.NewInviteService(store, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise invite service: %w", err)
	}
	return invites, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	var errs error
	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}

	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}

	for _, err := range multierr.Errors(errs) {
		log.Warn("shutdown", zap.Error(err))
	}
}

func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}
