package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/interfaces/httpserver/handlers/conversationhandler"
	"parley-server/internal/interfaces/httpserver/middlewares"
	"parley-server/internal/interfaces/httpserver/requests"
	"parley-server/internal/interfaces/httpserver/responses"
	"parley-server/internal/utils/platformerrors"
)

type ConversationRoute struct {
	handler *conversationhandler.ConversationHandler
}

func NewConversationRoute(handler *conversationhandler.ConversationHandler) *ConversationRoute {
	return &ConversationRoute{handler: handler}
}

func (route *ConversationRoute) RegisterRouter(router gin.IRouter) {
	conversations := router.Group("/conversations")

	conversations.POST("", route.create)
	conversations.GET("", route.list)
	conversations.GET("/:conv_public_id", route.get)
	conversations.PATCH("/:conv_public_id", route.update)
	conversations.DELETE("/:conv_public_id", route.remove)
	conversations.POST("/:conv_public_id/archive", route.archive)
	conversations.POST("/:conv_public_id/unarchive", route.unarchive)
	conversations.POST("/:conv_public_id/branch", route.branch)
	conversations.GET("/:conv_public_id/messages", route.listMessages)
	conversations.PUT("/:conv_public_id/messages/:message_id", route.editMessage)
}

func (route *ConversationRoute) create(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "e30b8d52-49c7-4a16-bf85-7d2a60c1e9f4")
		return
	}

	var req requests.CreateConversationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil && reqCtx.Request.ContentLength > 0 {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "92c5f7e0-1d48-4b3a-86e2-d07b9a6c5f13")
		return
	}

	resp, err := route.handler.Create(reqCtx.Request.Context(), principal.ID, req)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to create conversation")
		return
	}
	reqCtx.JSON(http.StatusCreated, resp)
}

func (route *ConversationRoute) list(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "51e9c2d7-8a04-4f6b-93c8-0b5d7e2a1f60")
		return
	}

	resp, err := route.handler.List(reqCtx.Request.Context(), principal.ID)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to list conversations")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"object": "list", "data": resp})
}

func (route *ConversationRoute) get(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "7f0c4b93-2e85-41da-b6f1-c8a0d5e97324")
		return
	}

	resp, err := route.handler.Get(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to get conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, resp)
}

func (route *ConversationRoute) update(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "08d6a1f5-73b9-4c20-85ed-4f2c9b0a7e61")
		return
	}

	var req requests.UpdateConversationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "c47e0d29-5af1-48b6-92c3-1e8f5a0d6b72")
		return
	}

	resp, err := route.handler.UpdateTitle(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to update conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, resp)
}

func (route *ConversationRoute) remove(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "3b9f2c70-e518-4d6a-80b4-96c7d1e5a0f2")
		return
	}

	if err := route.handler.Delete(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id")); err != nil {
		responses.HandleError(reqCtx, err, "Failed to delete conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (route *ConversationRoute) archive(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "d15a7e60-49c2-4b8f-a3d9-e02b6f5c1847")
		return
	}

	resp, err := route.handler.Archive(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to archive conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, resp)
}

func (route *ConversationRoute) unarchive(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "a82d0f37-6c15-4e9b-b74a-50c3e8d2f916")
		return
	}

	resp, err := route.handler.Unarchive(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to unarchive conversation")
		return
	}
	reqCtx.JSON(http.StatusOK, resp)
}

func (route *ConversationRoute) branch(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "f64c1a08-d273-4b5e-9f80-27a5c0e6d391")
		return
	}

	var req requests.BranchConversationRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "29e7b5d0-841f-4c6a-a2d5-60f8c3b1e794")
		return
	}

	resp, err := route.handler.Branch(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to branch conversation")
		return
	}
	reqCtx.JSON(http.StatusCreated, resp)
}

func (route *ConversationRoute) listMessages(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "60b3d8f1-27c9-4a05-8e6b-f41d2a7c0e53")
		return
	}

	resp, err := route.handler.ListMessages(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"))
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to list messages")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"object": "list", "data": resp})
}

func (route *ConversationRoute) editMessage(reqCtx *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeUnauthorized, "authentication required", "4d27e9a6-0b81-4f35-92c0-e6a8d5f17b42")
		return
	}

	var req requests.EditMessageRequest
	if err := reqCtx.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body", "b90f6e23-5d47-4a81-bc69-123a7d0e8f50")
		return
	}

	resp, err := route.handler.EditMessage(reqCtx.Request.Context(), principal.ID, reqCtx.Param("conv_public_id"), reqCtx.Param("message_id"), req)
	if err != nil {
		responses.HandleError(reqCtx, err, "Failed to edit message")
		return
	}
	reqCtx.JSON(http.StatusOK, resp)
}
