package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/charlesng35/invitegate/internal/app"
	iauth "github.com/charlesng35/invitegate/internal/auth"
	"github.com/charlesng35/invitegate/internal/handlers"
	"github.com/charlesng35/invitegate/internal/middleware"
	"github.com/charlesng35/invitegate/internal/monitoring"
	"github.com/charlesng35/invitegate/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers the invite routes.
// A nil rate store disables request limiting. probes are appended to the
// database and sms checks served on /health.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, invites *services.InviteService, rates middleware.RateStore, probes ...monitoring.Check) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if invites == nil {
		return nil, fmt.Errorf("invite service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	r.NoRoute(middleware.NotFoundHandler)

	health := monitoring.NewHealthManager(
		monitoring.DatabaseCheck(db, cfg.Database.QueryTimeout),
		monitoring.SMSCheck(invites.SMSConfigured),
	)
	for _, probe := range probes {
		health.Register(probe)
	}
	r.GET("/health", handlers.Health(health))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))
	api.Use(middleware.RateLimit(rates, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window))

	registerInviteRoutes(api, handlers.NewInviteHandler(invites), rates, cfg.SMS.NotifyLimit)

	return r, nil
}

func registerInviteRoutes(api *gin.RouterGroup, handler *handlers.InviteHandler, rates middleware.RateStore, notify app.RateLimitConfig) {
	group := api.Group("/invite-codes")
	{
		group.POST("", handler.Create)
		group.GET("/mine", handler.ListMine)
		group.POST("/use", handler.Redeem)
		group.POST("/:id/send-sms",
			middleware.RateLimitByKey(rates, "sms", notify.Requests, notify.Window, handlers.SMSDestinationKey),
			handler.SendSMS,
		)
	}

	admin := group.Group("", middleware.RequireAdmin())
	{
		admin.GET("", handler.List)
		admin.GET("/lookup/:code", handler.GetByCode)
		admin.GET("/:id", handler.Get)
		admin.PATCH("/:id", handler.UpdateExpiry)
		admin.DELETE("/:id", handler.Delete)
	}
}
