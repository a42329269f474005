package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/invitegate/internal/monitoring"
	"github.com/charlesng35/invitegate/pkg/response"
)

const healthTimeout = 3 * time.Second

// Health renders the probe report. Only a down component turns the response
// into a 503; degraded dependencies are reported but keep the service ready.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(requestContext(c), healthTimeout)
		defer cancel()

		report := manager.Evaluate(ctx)
		if report.Healthy() {
			response.Success(c, http.StatusOK, report)
			return
		}

		c.JSON(http.StatusServiceUnavailable, response.Response{
			Success: false,
			Data:    report,
			Error:   &response.ErrorInfo{Code: "UNAVAILABLE", Message: "Service unavailable"},
		})
	}
}
