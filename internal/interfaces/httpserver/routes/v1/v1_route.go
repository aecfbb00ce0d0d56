package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parley-server/internal/config"
)

type V1Route struct {
	conversation *ConversationRoute
	chat         *ChatRoute
	session      *SessionRoute
}

func NewV1Route(
	conversation *ConversationRoute,
	chat *ChatRoute,
	session *SessionRoute,
) *V1Route {
	return &V1Route{
		conversation: conversation,
		chat:         chat,
		session:      session,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)

	v1Route.conversation.RegisterRouter(v1Router)
	v1Route.chat.RegisterRouter(v1Router)
	v1Route.session.RegisterRouter(v1Router)
}

func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": config.Version})
}
