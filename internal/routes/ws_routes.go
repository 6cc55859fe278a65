package routes

import (
	"mwork_messaging/internal/auth"
	"mwork_messaging/internal/handlers"
	"mwork_messaging/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupWebSocketRoutes - без таймаута запроса: соединение живет долго
func SetupWebSocketRoutes(r *gin.Engine, wsHandler *handlers.WSHandler, tokens *auth.TokenService) {
	// Браузер не умеет ставить заголовки на websocket, поэтому токен можно передать в ?token=
	r.GET("/ws", middleware.WSAuthMiddleware(tokens), wsHandler.HandleWebSocket)
}
