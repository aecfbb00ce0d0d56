package middlewares

import (
	"math"
	"net"
	"strconv"

	"github.com/gin-gonic/gin"

	"parley-server/internal/guard/ratelimit"
	"parley-server/internal/infrastructure/metrics"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

// RateLimitMiddleware enforces a sliding-window limit per principal (or IP
// for unauthenticated requests). Every response carries the X-RateLimit-*
// headers; a rejected request also gets Retry-After, never longer than the
// window itself.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Allow(rateKey(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			metrics.RateLimitedTotal.WithLabelValues(limiter.Name()).Inc()
			responses.HandleNewErrorWithReason(c, platformerrors.ErrorTypeRateLimited,
				"too many requests", "rate_limited", "91c4e7a0-2d58-4f3b-86e9-b0a5d17c3f82")
			return
		}

		c.Next()
	}
}

func rateKey(c *gin.Context) string {
	if principal, ok := PrincipalFromContext(c); ok && principal.ID != "" {
		return "pid:" + principal.ID
	}
	ip := clientIP(c.ClientIP())
	if ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

// Normalize IPv6-mapped IPv4 etc.
func clientIP(raw string) string {
	if raw == "" {
		return ""
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
