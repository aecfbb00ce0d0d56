package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"parley-server/internal/guard/ratelimit"
	"parley-server/internal/interfaces/httpserver/handlers/chathandler"
	"parley-server/internal/interfaces/httpserver/middlewares"
	"parley-server/internal/interfaces/httpserver/requests"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

// ChatRoute carries the streaming endpoints. Sends and retries share a
// stricter rate limit than the rest of the API.
type ChatRoute struct {
	handler     *chathandler.ChatHandler
	sendLimiter *ratelimit.Limiter
	validate    *validator.Validate
}

func NewChatRoute(handler *chathandler.ChatHandler, sendLimiter *ratelimit.Limiter) *ChatRoute {
	return &ChatRoute{
		handler:     handler,
		sendLimiter: sendLimiter,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (route *ChatRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")
	conversations.Use(middlewares.RateLimitMiddleware(route.sendLimiter))

	conversations.POST("/:conv_public_id/messages", route.sendMessage)
	conversations.POST("/:conv_public_id/messages/:message_id/retry", route.retryMessage)
}

func (route *ChatRoute) sendMessage(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "8c52f0d4-e917-4b6a-a3c8-7d05b2e1f964")
		return
	}

	var req requests.SendMessageRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "1f7a3c90-64d8-4e25-b0f9-c52e8a07d613")
		return
	}
	if err := route.validate.Struct(req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "validation failed", "ab4f6e18-5d02-4c97-8be3-f01c92d7a546")
		return
	}

	if _, ok := middlewares.PrepareSSE(reqCtx); !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "streaming unsupported", "0a95d7e2-8b36-4c01-94fd-63b1c2a0e785")
		return
	}

	err := route.handler.SendMessage(
		reqCtx.Request.Context(),
		reqCtx.Writer,
		principal.ID,
		reqCtx.Param("conv_public_id"),
		req.Content,
	)
	if err != nil {
		// Nothing streamed yet; fall back to a JSON error response.
		reqCtx.Writer.Header().Set("Content-Type", "application/json")
		responses.HandleError(reqCtx, err, "Failed to send message")
	}
}

func (route *ChatRoute) retryMessage(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "e2b90c56-17f4-4da8-b5e3-09c6a4d2f871")
		return
	}

	if _, ok := middlewares.PrepareSSE(reqCtx); !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "streaming unsupported", "76d3e1a9-02c5-4f8b-a4d7-e85b9c60f132")
		return
	}

	err := route.handler.RetryMessage(
		reqCtx.Request.Context(),
		reqCtx.Writer,
		principal.ID,
		reqCtx.Param("conv_public_id"),
		reqCtx.Param("message_id"),
	)
	if err != nil {
		reqCtx.Writer.Header().Set("Content-Type", "application/json")
		responses.HandleError(reqCtx, err, "Failed to retry message")
	}
}
