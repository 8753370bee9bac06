package middleware

import (
	"fmt"
	"net/http"

	"deckparty/services"

	"github.com/gin-gonic/gin"
)

// RateLimit enforces the hard cap for one action type. The attempt is
// recorded before the handler runs, so failed and successful attempts count
// alike, and denial short-circuits before any game state is touched.
func RateLimit(limiter *services.RateLimiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.Request.Context(), c.ClientIP(), action)
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}
		c.Next()
	}
}

// ProbeGuard is the fail2ban-style brute-force defence on the public API: a
// client locked out for probing game codes is denied outright, and every
// not-found outcome feeds the probe counter.
func ProbeGuard(limiter *services.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, retryAfter := limiter.Check(c.Request.Context(), ip, services.ActionFailedGameCode)
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusNotFound {
			limiter.Allow(c.Request.Context(), ip, services.ActionFailedGameCode)
		}
	}
}
