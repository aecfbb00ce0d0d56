// Package sessionhandler exposes the idle-session countdown and timeout
// preference.
package sessionhandler

import (
	"time"

	"parley-server/internal/guard/session"
	"parley-server/internal/interfaces/httpserver/responses"
)

// SessionHandler handles session status and timeout requests
type SessionHandler struct {
	guard *session.Guard
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(guard *session.Guard) *SessionHandler {
	return &SessionHandler{guard: guard}
}

func (h *SessionHandler) Status(userID string) responses.SessionStatusResponse {
	remaining, expiresAt := h.guard.Status(userID)
	return responses.SessionStatusResponse{
		RemainingSeconds: int(remaining.Seconds()),
		ExpiresAt:        expiresAt,
	}
}

func (h *SessionHandler) SetTimeout(userID string, timeoutSeconds int) responses.SessionTimeoutResponse {
	effective := h.guard.SetTimeout(userID, time.Duration(timeoutSeconds)*time.Second)
	return responses.SessionTimeoutResponse{
		TimeoutSeconds: int(effective.Seconds()),
	}
}
