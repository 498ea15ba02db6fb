package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/jobgate/internal/metrics"
	"github.com/osvaldoandrade/jobgate/internal/ratelimit"
)

const RateLimitRemainingHeader = "X-RateLimit-Remaining"

// RateLimitSubmit admits job submissions per client IP. There is no caller
// identity in front of the gateway, so the address is the only subject; a nil
// limiter admits everything.
func RateLimitSubmit(lim ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lim == nil {
			c.Next()
			return
		}

		dec, err := lim.Admit(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Fail open: a Redis outage must not take submissions down with it.
			metrics.RateLimitDecisionsTotal.WithLabelValues("error").Inc()
			GetLogger(c).Warn("rate limit check failed", "client_ip", c.ClientIP(), "err", err)
			c.Next()
			return
		}
		if dec.Allowed {
			metrics.RateLimitDecisionsTotal.WithLabelValues("admitted").Inc()
			c.Header(RateLimitRemainingHeader, strconv.Itoa(dec.Remaining))
			c.Next()
			return
		}

		retryAfterSeconds := int(math.Ceil(dec.RetryAfter.Seconds()))
		if retryAfterSeconds < 1 {
			retryAfterSeconds = 1
		}
		metrics.RateLimitDecisionsTotal.WithLabelValues("rejected").Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.Header(RateLimitRemainingHeader, "0")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "too many submissions",
			"retryAfterSeconds": retryAfterSeconds,
		})
	}
}
