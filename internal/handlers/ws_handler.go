package handlers

import (
	"mwork_messaging/internal/logger"
	"mwork_messaging/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	*BaseHandler
	hub      *ws.Hub
	upgrader *websocket.Upgrader
}

func NewWSHandler(base *BaseHandler, hub *ws.Hub, allowOrigins []string) *WSHandler {
	return &WSHandler{
		BaseHandler: base,
		hub:         hub,
		upgrader:    ws.NewUpgrader(allowOrigins),
	}
}

// HandleWebSocket - userID кладет WSAuthMiddleware (заголовок или ?token=)
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	// Upgrader сам отвечает клиенту при ошибке рукопожатия
	if err := ws.ServeWS(h.hub, h.upgrader, c.Writer, c.Request, userID); err != nil {
		logger.CtxWithError(c.Request.Context(), "websocket upgrade failed", err)
		return
	}
	logger.CtxDebug(c.Request.Context(), "websocket client connected")
}
