package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func newServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := NewUpgrader([]string{"*"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = ServeWS(hub, upgrader, w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_DeliversToEverySession(t *testing.T) {
	hub := startHub(t)
	srv := newServer(t, hub)

	phone := dial(t, srv, "alice")
	laptop := dial(t, srv, "alice")
	other := dial(t, srv, "bob")

	require.Eventually(t, func() bool {
		return hub.SessionCount("alice") == 2 && hub.SessionCount("bob") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Deliver("alice", []byte(`{"type":"unread-count-update"}`))

	for _, conn := range []*websocket.Conn{phone, laptop} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"unread-count-update"}`, string(payload))
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "bob gets nothing")
}

func TestHub_UnregistersClosedSessions(t *testing.T) {
	hub := startHub(t)
	srv := newServer(t, hub)

	conn := dial(t, srv, "alice")
	require.Eventually(t, func() bool { return hub.SessionCount("alice") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.SessionCount("alice") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)

	slow := &Client{UserID: "alice", send: make(chan []byte, 1), hub: hub}
	require.NoError(t, hub.join(slow))
	require.Eventually(t, func() bool { return hub.SessionCount("alice") == 1 }, time.Second, 10*time.Millisecond)

	hub.Deliver("alice", []byte("1"))
	hub.Deliver("alice", []byte("2"))

	assert.Eventually(t, func() bool { return hub.SessionCount("alice") == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte("1"), <-slow.send)
	_, open := <-slow.send
	assert.False(t, open, "send channel is closed")
}

func TestHub_StoppedRejectsSessions(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	err := hub.join(&Client{UserID: "alice", send: make(chan []byte, 1), hub: hub})
	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	restricted := NewUpgrader([]string{"https://app.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, restricted.CheckOrigin(req), "no origin header")

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, restricted.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, restricted.CheckOrigin(req))

	open := NewUpgrader([]string{"*"})
	assert.True(t, open.CheckOrigin(req))
}
