package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/guard/session"
	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/infrastructure/metrics"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

// SessionGuardMiddleware rejects requests from users whose session went idle
// past its timeout. The 401 carries reason "timeout" so it is never confused
// with an expired token. Guard failures other than an expired session let the
// request through.
func SessionGuardMiddleware(guard *session.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			c.Next()
			return
		}

		if err := guard.Check(principal.ID); err != nil {
			if errors.Is(err, session.ErrExpired) {
				metrics.SessionsExpiredTotal.Inc()
				responses.HandleNewErrorWithReason(c, platformerrors.ErrorTypeUnauthorized,
					"session expired due to inactivity", "timeout", "4a7d0e93-c162-48b5-9f3e-8b1c5d2a7e60")
				return
			}
			log := logger.GetLogger()
			log.Error().
				Err(err).
				Str("user_id", principal.ID).
				Msg("session guard check failed, letting request through")
		}

		if isMutating(c.Request.Method) {
			guard.Touch(principal.ID)
		}

		c.Next()
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}
