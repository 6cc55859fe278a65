package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mwork_messaging/internal/auth"
	"mwork_messaging/internal/config"
	"mwork_messaging/internal/models"
	"mwork_messaging/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type testEnv struct {
	app    *App
	db     *gorm.DB
	server *httptest.Server
	tokens *auth.TokenService
	alice  *models.User
	bob    *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.Server.RequestTimeoutSeconds = 5
	cfg.JWT.Secret = testSecret
	cfg.Storage.Type = "local"
	cfg.Storage.BaseURL = "https://cdn.test"
	cfg.Realtime.Broker = "local"
	cfg.Realtime.QueueSize = 64
	cfg.CORS.AllowOrigins = []string{"*"}

	db := testutil.NewTestDB(t)
	application, err := New(context.Background(), cfg, db)
	require.NoError(t, err)

	server := httptest.NewServer(application.Router)
	t.Cleanup(func() {
		server.Close()
		application.Close()
	})

	return &testEnv{
		app:    application,
		db:     db,
		server: server,
		tokens: auth.NewTokenService(testSecret),
		alice:  testutil.CreateUser(t, db, "Alice"),
		bob:    testutil.CreateUser(t, db, "Bob"),
	}
}

func (e *testEnv) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, err := e.tokens.GenerateToken(user.ID, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, user *models.User, method, path string, body interface{}) (int, map[string]interface{}, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, user))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	var obj map[string]interface{}
	_ = json.Unmarshal(buf.Bytes(), &obj)
	return resp.StatusCode, obj, buf.Bytes()
}

func (e *testEnv) dialWS(t *testing.T, user *models.User) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + e.token(t, user)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return e.app.Hub.SessionCount(user.ID) > 0 }, time.Second, 10*time.Millisecond)
	return conn
}

type envelope struct {
	Type   string                 `json:"type"`
	UserID string                 `json:"user_id"`
	Data   map[string]interface{} `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e envelope
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func errorCode(obj map[string]interface{}) string {
	errObj, _ := obj["error"].(map[string]interface{})
	code, _ := errObj["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	status, obj, _ := env.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", obj["status"])
}

func TestAPI_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	status, obj, _ := env.do(t, nil, http.MethodGet, "/api/v1/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(obj))

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMessagingFlow(t *testing.T) {
	env := newTestEnv(t)
	testutil.Connect(t, env.db, env.alice.ID, env.bob.ID)

	aliceWS := env.dialWS(t, env.alice)
	bobWS := env.dialWS(t, env.bob)

	status, msg, raw := env.do(t, env.alice, http.MethodPost, "/api/v1/messages", map[string]interface{}{
		"recipient_id": env.bob.ID,
		"body":         "hello",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	assert.Equal(t, "hello", msg["body"])
	assert.Equal(t, false, msg["read_by_recipient"])
	conversationID, _ := msg["conversation_id"].(string)
	require.NotEmpty(t, conversationID)

	event := readEvent(t, bobWS)
	assert.Equal(t, "new-message", event.Type)
	assert.Equal(t, env.bob.ID, event.UserID)
	assert.Equal(t, "hello", event.Data["preview"])
	assert.Equal(t, msg["id"], event.Data["id"])

	event = readEvent(t, bobWS)
	assert.Equal(t, "unread-count-update", event.Type)
	assert.Equal(t, float64(1), event.Data["total"])

	status, _, raw = env.do(t, env.bob, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, status)
	var conversations []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &conversations))
	require.Len(t, conversations, 1)
	assert.Equal(t, conversationID, conversations[0]["id"])
	assert.Equal(t, "Alice", conversations[0]["other_user_name"])
	assert.Equal(t, float64(1), conversations[0]["unread_count"])
	assert.Equal(t, "hello", conversations[0]["last_message"])

	status, read, _ := env.do(t, env.bob, http.MethodPost, "/api/v1/conversations/"+conversationID+"/read", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, env.alice.ID, read["sender_id"])
	assert.Equal(t, float64(1), read["marked"])

	event = readEvent(t, aliceWS)
	assert.Equal(t, "message-read", event.Type)
	assert.Equal(t, env.bob.ID, event.Data["reader_id"])

	event = readEvent(t, bobWS)
	assert.Equal(t, "conversation-updated", event.Type)
	assert.Equal(t, float64(0), event.Data["unread_count"])
	event = readEvent(t, bobWS)
	assert.Equal(t, "unread-count-update", event.Type)
	assert.Equal(t, float64(0), event.Data["total"])

	status, unread, _ := env.do(t, env.bob, http.MethodGet, "/api/v1/messages/unread-count", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), unread["total"])

	status, _, raw = env.do(t, env.alice, http.MethodGet, "/api/v1/conversations/"+conversationID+"/messages?limit=10", nil)
	require.Equal(t, http.StatusOK, status)
	var messages []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, true, messages[0]["read_by_recipient"])
}

func TestSendMessage_NotConnected(t *testing.T) {
	env := newTestEnv(t)

	status, obj, _ := env.do(t, env.alice, http.MethodPost, "/api/v1/messages", map[string]interface{}{
		"recipient_id": env.bob.ID,
		"body":         "hi",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", errorCode(obj))
	errObj := obj["error"].(map[string]interface{})
	assert.Equal(t, "messaging requires an accepted connection", errObj["message"])

	status, obj, _ = env.do(t, env.alice, http.MethodPost, "/api/v1/conversations", map[string]interface{}{
		"other_user_id": env.bob.ID,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", errorCode(obj))
}

func TestSendMessage_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	testutil.Connect(t, env.db, env.alice.ID, env.bob.ID)

	status, obj, _ := env.do(t, env.alice, http.MethodPost, "/api/v1/messages", map[string]interface{}{
		"body": "no recipient",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(obj))
	details := obj["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Contains(t, details, "recipient_id")

	status, obj, _ = env.do(t, env.alice, http.MethodPost, "/api/v1/messages", map[string]interface{}{
		"recipient_id": env.bob.ID,
		"body":         "hi",
		"kind":         "sticker",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(obj))

	status, obj, _ = env.do(t, env.alice, http.MethodPost, "/api/v1/messages", map[string]interface{}{
		"recipient_id": env.bob.ID,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(obj))

	status, _, _ = env.do(t, env.alice, http.MethodGet, "/api/v1/conversations/x/messages?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeleteMessage_API(t *testing.T) {
	env := newTestEnv(t)
	testutil.Connect(t, env.db, env.alice.ID, env.bob.ID)

	status, msg, _ := env.do(t, env.alice, http.MethodPost, "/api/v1/messages", map[string]interface{}{
		"recipient_id": env.bob.ID,
		"media_key":    "media/cat.jpg",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "media", msg["kind"])
	assert.Equal(t, "https://cdn.test/media/cat.jpg", msg["media_url"])
	messageID := msg["id"].(string)
	conversationID := msg["conversation_id"].(string)

	status, obj, _ := env.do(t, env.bob, http.MethodDelete, "/api/v1/messages/"+messageID, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PERMISSION_DENIED", errorCode(obj))

	status, obj, _ = env.do(t, env.alice, http.MethodDelete, "/api/v1/messages/"+messageID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, obj["deleted"])

	status, obj, _ = env.do(t, env.alice, http.MethodDelete, "/api/v1/messages/"+messageID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(obj))

	status, obj, _ = env.do(t, env.bob, http.MethodDelete, "/api/v1/conversations/"+conversationID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, obj["deleted"])

	status, _, raw := env.do(t, env.bob, http.MethodGet, "/api/v1/conversations", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(raw))
}
