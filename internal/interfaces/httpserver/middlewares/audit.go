package middlewares

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"

	"parley-server/internal/application/audit"
)

// AuditMiddleware records who did what after the response is written. Only
// authenticated mutating requests are recorded; persistence happens off the
// request path and a failed write never affects the response.
func AuditMiddleware(auditLogger *audit.Logger, excludePaths map[string]struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}
		if _, excluded := excludePaths[c.Request.URL.Path]; excluded {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			if read, err := io.ReadAll(c.Request.Body); err == nil {
				body = read
				c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
			}
		}

		c.Next()

		principal, ok := PrincipalFromContext(c)
		if !ok {
			return
		}

		status := c.Writer.Status()
		outcome := "success"
		if status >= 400 {
			outcome = "failure"
		}

		action, resourceType, resourceID := audit.DescribeRequest(c.Request.Method, c.Request.URL.Path)
		auditLogger.Record(audit.Entry{
			RequestID:    RequestIDFromContext(c),
			UserID:       principal.ID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			Status:       status,
			Outcome:      outcome,
			Detail:       string(body),
		})
	}
}
