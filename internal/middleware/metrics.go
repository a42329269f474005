package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/invitegate/pkg/metrics"
)

// unmatchedRoute labels requests that hit no registered route, keeping raw
// URLs out of the label set.
const unmatchedRoute = "unmatched"

// Metrics observes per-route latency and the in-flight request gauge.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.APIInFlight.Inc()
		start := time.Now()
		defer func() {
			metrics.APIInFlight.Dec()

			route := c.FullPath()
			if route == "" {
				route = unmatchedRoute
			}
			metrics.APILatency.
				WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
				Observe(time.Since(start).Seconds())
		}()

		c.Next()
	}
}
