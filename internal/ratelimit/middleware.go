package ratelimit

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/edumetric/edumetric/internal/errors"
	"github.com/edumetric/edumetric/internal/monitoring"
)

// Middleware applies the general per-IP limit to all API routes.
func (rl *RateLimiter) Middleware(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := rl.AllowIP(c.Request.Context(), c.ClientIP())
		if err != nil {
			// A broken limiter never blocks traffic.
			c.Next()
			return
		}

		setHeaders(c, result)

		if !result.Allowed {
			if metrics != nil {
				metrics.IncrementRateLimitIPBlock()
			}
			appErr := apperrors.NewRateLimitError(result.RetryAfter.String())
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		c.Next()
	}
}

// HeavyMiddleware applies the tighter limit to full-institution scans.
func (rl *RateLimiter) HeavyMiddleware(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := rl.AllowHeavy(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}

		setHeaders(c, result)

		if !result.Allowed {
			if metrics != nil {
				metrics.IncrementRateLimitIPBlock()
			}
			appErr := apperrors.NewRateLimitError(result.RetryAfter.String())
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		c.Next()
	}
}

func setHeaders(c *gin.Context, result *Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}
