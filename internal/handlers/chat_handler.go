package handlers

import (
	"net/http"

	"mwork_messaging/internal/logger"
	"mwork_messaging/internal/services/chat"
	"mwork_messaging/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	*BaseHandler
	messaging chat.MessagingService
}

func NewChatHandler(base *BaseHandler, messaging chat.MessagingService) *ChatHandler {
	return &ChatHandler{
		BaseHandler: base,
		messaging:   messaging,
	}
}

// RegisterRoutes - группа r уже закрыта AuthMiddleware
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	conversations := r.Group("/conversations")
	{
		conversations.GET("", h.GetConversations)
		conversations.POST("", h.GetOrCreateConversation)
		conversations.GET("/:id/messages", h.GetMessages)
		conversations.POST("/:id/read", h.MarkRead)
		conversations.DELETE("/:id", h.DeleteConversation)
	}

	messages := r.Group("/messages")
	{
		messages.POST("", h.SendMessage)
		messages.GET("/unread-count", h.GetUnreadCount)
		messages.DELETE("/:id", h.DeleteMessage)
	}
}

// --- Conversation handlers ---

func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	conversations, err := h.messaging.GetConversations(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

func (h *ChatHandler) GetOrCreateConversation(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateConversationRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	conversation, err := h.messaging.GetOrCreateConversation(c.Request.Context(), h.GetDB(c), userID, req.OtherUserID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	conversationID, ok := h.RequireParam(c, "id")
	if !ok {
		return
	}

	var query dto.ListMessagesQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	ctx := logger.WithConversationID(c.Request.Context(), conversationID)
	messages, err := h.messaging.GetMessages(ctx, h.GetDB(c), conversationID, userID, query.Limit)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	conversationID, ok := h.RequireParam(c, "id")
	if !ok {
		return
	}

	ctx := logger.WithConversationID(c.Request.Context(), conversationID)
	result, err := h.messaging.MarkRead(ctx, h.GetDB(c), conversationID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	conversationID, ok := h.RequireParam(c, "id")
	if !ok {
		return
	}

	ctx := logger.WithConversationID(c.Request.Context(), conversationID)
	if err := h.messaging.DeleteConversation(ctx, h.GetDB(c), conversationID, userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

// --- Message handlers ---

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	message, err := h.messaging.SendMessage(c.Request.Context(), h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	messageID, ok := h.RequireParam(c, "id")
	if !ok {
		return
	}

	deleted, err := h.messaging.DeleteMessage(c.Request.Context(), h.GetDB(c), messageID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: deleted})
}

func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	total, err := h.messaging.GetUnreadTotal(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.UnreadCountResponse{Total: total})
}
