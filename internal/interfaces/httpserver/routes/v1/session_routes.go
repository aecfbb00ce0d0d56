package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/interfaces/httpserver/handlers/sessionhandler"
	"parley-server/internal/interfaces/httpserver/middlewares"
	"parley-server/internal/interfaces/httpserver/requests"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

type SessionRoute struct {
	handler *sessionhandler.SessionHandler
}

func NewSessionRoute(handler *sessionhandler.SessionHandler) *SessionRoute {
	return &SessionRoute{handler: handler}
}

func (route *SessionRoute) RegisterRouter(router gin.IRouter) {
	session := router.Group("/session")

	session.GET("/status", route.status)
	session.PUT("/timeout", route.setTimeout)
}

func (route *SessionRoute) status(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "5e81d3c7-0f92-4ab6-8d45-b20c7e1a6f93")
		return
	}

	reqCtx.JSON(http.StatusOK, route.handler.Status(principal.ID))
}

func (route *SessionRoute) setTimeout(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "97a2f4e0-6c31-4d58-b8a9-04e7c5d2f1b6")
		return
	}

	var req requests.SessionTimeoutRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "c0d58b21-9e76-4f3a-a1c4-62b8e0d5f739")
		return
	}

	reqCtx.JSON(http.StatusOK, route.handler.SetTimeout(principal.ID, req.TimeoutSeconds))
}
