package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mwork_messaging/internal/logger"
	"mwork_messaging/internal/services/dto"
	"mwork_messaging/internal/validator"
	"mwork_messaging/pkg/apperrors"
	"mwork_messaging/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubMessaging отвечает заранее заданной ошибкой и запоминает аргументы
type stubMessaging struct {
	err          error
	gotCtx       context.Context
	gotUserID    string
	gotConvID    string
	gotLimit     int
	gotRecipient string
}

func (s *stubMessaging) SendMessage(_ context.Context, _ *gorm.DB, senderID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	s.gotUserID, s.gotRecipient = senderID, req.RecipientID
	if s.err != nil {
		return nil, s.err
	}
	return &dto.MessageResponse{ID: "m1", SenderID: senderID, Kind: "text"}, nil
}

func (s *stubMessaging) GetOrCreateConversation(_ context.Context, _ *gorm.DB, userID, otherUserID string) (*dto.ConversationResponse, error) {
	s.gotUserID = userID
	return &dto.ConversationResponse{ID: "c1", OtherUserID: otherUserID}, s.err
}

func (s *stubMessaging) GetConversations(_ context.Context, _ *gorm.DB, userID string) ([]*dto.ConversationResponse, error) {
	s.gotUserID = userID
	return []*dto.ConversationResponse{}, s.err
}

func (s *stubMessaging) GetMessages(ctx context.Context, _ *gorm.DB, conversationID, userID string, limit int) ([]*dto.MessageResponse, error) {
	s.gotCtx = ctx
	s.gotConvID, s.gotUserID, s.gotLimit = conversationID, userID, limit
	return []*dto.MessageResponse{}, s.err
}

func (s *stubMessaging) MarkRead(ctx context.Context, _ *gorm.DB, conversationID, readerID string) (*dto.MarkReadResponse, error) {
	s.gotCtx = ctx
	s.gotConvID, s.gotUserID = conversationID, readerID
	return &dto.MarkReadResponse{ConversationID: conversationID}, s.err
}

func (s *stubMessaging) DeleteMessage(_ context.Context, _ *gorm.DB, _, userID string) (bool, error) {
	s.gotUserID = userID
	return s.err == nil, s.err
}

func (s *stubMessaging) DeleteConversation(_ context.Context, _ *gorm.DB, conversationID, userID string) error {
	s.gotConvID, s.gotUserID = conversationID, userID
	return s.err
}

func (s *stubMessaging) GetUnreadTotal(_ context.Context, _ *gorm.DB, userID string) (int64, error) {
	s.gotUserID = userID
	return 7, s.err
}

func newTestRouter(svc *stubMessaging, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(string(contextkeys.DBContextKey), &gorm.DB{})
		if userID != "" {
			c.Set(contextkeys.UserIDKey, userID)
		}
		c.Next()
	})
	NewChatHandler(NewBaseHandler(validator.New()), svc).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func perform(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatHandler_RequiresUser(t *testing.T) {
	router := newTestRouter(&stubMessaging{}, "")

	w := perform(router, http.MethodGet, "/api/v1/conversations", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatHandler_PassesParams(t *testing.T) {
	svc := &stubMessaging{}
	router := newTestRouter(svc, "alice")

	w := perform(router, http.MethodGet, "/api/v1/conversations/c1/messages?limit=20", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", svc.gotConvID)
	assert.Equal(t, "alice", svc.gotUserID)
	assert.Equal(t, 20, svc.gotLimit)
	assert.Equal(t, "c1", logger.GetConversationID(svc.gotCtx), "service logs carry the conversation id")

	w = perform(router, http.MethodPost, "/api/v1/conversations/c2/read", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c2", logger.GetConversationID(svc.gotCtx))

	w = perform(router, http.MethodPost, "/api/v1/messages", `{"recipient_id":"bob","body":"hi"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "bob", svc.gotRecipient)

	w = perform(router, http.MethodGet, "/api/v1/messages/unread-count", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":7}`, w.Body.String())
}

func TestChatHandler_MapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.ErrNotConnected, http.StatusForbidden, "PERMISSION_DENIED"},
		{apperrors.ErrConversationNotFound, http.StatusNotFound, "NOT_FOUND"},
		{apperrors.ErrEmptyMessage, http.StatusBadRequest, "VALIDATION_FAILED"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			router := newTestRouter(&stubMessaging{err: tc.err}, "alice")

			w := perform(router, http.MethodPost, "/api/v1/messages", `{"recipient_id":"bob","body":"hi"}`)
			assert.Equal(t, tc.status, w.Code)

			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestChatHandler_BindErrors(t *testing.T) {
	router := newTestRouter(&stubMessaging{}, "alice")

	w := perform(router, http.MethodPost, "/api/v1/messages", `{"recipient_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(router, http.MethodPost, "/api/v1/conversations", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "other_user_id")

	w = perform(router, http.MethodGet, "/api/v1/conversations/c1/messages?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
