package middlewares

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"

	"parley-server/internal/guard/dedup"
	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/infrastructure/metrics"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

// DedupMiddleware rejects a mutating request that repeats an identical recent
// one from the same user against the same resource. Read requests pass
// untouched. A failure to inspect the request lets it through.
func DedupMiddleware(detector *dedup.Detector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		principal, ok := PrincipalFromContext(c)
		if !ok {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				log := logger.GetLogger()
				log.Error().
					Err(err).
					Str("path", c.Request.URL.Path).
					Msg("failed to read body for duplicate check, letting request through")
				c.Next()
				return
			}
			// Hand the body back to the handler.
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		resource := c.Request.Method + " " + c.Request.URL.Path
		if detector.CheckAndRecord(principal.ID, resource, body) {
			metrics.DuplicatesSuppressedTotal.Inc()
			responses.HandleNewErrorWithReason(c, platformerrors.ErrorTypeConflict,
				"duplicate request", "duplicate_request", "d8f31b60-4c92-47ae-b5d1-0e7a6c32f915")
			return
		}

		c.Next()
	}
}
