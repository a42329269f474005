package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/invitegate/pkg/errors"
	"github.com/charlesng35/invitegate/pkg/logger"
	"github.com/charlesng35/invitegate/pkg/response"
)

// KeyFunc derives the rate limit bucket for a request. Returning false skips limiting.
type KeyFunc func(c *gin.Context) (string, bool)

// RateLimit limits requests per (clientIP, route) within a fixed window.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	return RateLimitByKey(store, "ip", maxRequests, window, func(c *gin.Context) (string, bool) {
		return c.ClientIP() + "|" + c.FullPath(), true
	})
}

// RateLimitByKey limits requests per key within a fixed window. Counters live in
// the supplied store so limits hold across instances when it is shared. Store
// failures let the request through.
func RateLimitByKey(store RateStore, scope string, maxRequests int, window time.Duration, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key, ok := keyFn(c)
		if !ok {
			c.Next()
			return
		}

		count, ttl, err := store.Increment(c.Request.Context(), "ratelimit:"+scope+":"+key, window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate limit store unavailable",
				zap.String("scope", scope),
				zap.Error(err),
			)
			c.Next()
			return
		}

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		reset := int(math.Ceil(ttl.Seconds()))

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if count > maxRequests {
			c.Header("Retry-After", strconv.Itoa(reset))
			response.Error(c, errors.ErrRateLimit)
			return
		}

		c.Next()
	}
}
