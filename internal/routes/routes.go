package routes

import (
	"time"

	"mwork_messaging/internal/auth"
	"mwork_messaging/internal/handlers"
	"mwork_messaging/internal/logger"
	"mwork_messaging/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все HTTP и WebSocket маршруты.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	tokens *auth.TokenService,
	requestTimeout time.Duration,
) {
	SetupPublicRoutes(ginRouter)

	// Регистрация HTTP API v1
	api := ginRouter.Group("/api/v1")
	api.Use(middleware.TimeoutMiddleware(requestTimeout), middleware.AuthMiddleware(tokens))
	{
		appHandlers.ChatHandler.RegisterRoutes(api)
	}

	SetupWebSocketRoutes(ginRouter, appHandlers.WSHandler, tokens)
	logger.Info("WebSocket route /ws registered")
}
