package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBroker(t *testing.T) {
	b := NewLocalBroker()
	got := make(chan string, 1)
	require.NoError(t, b.Subscribe(context.Background(), func(userID string, payload []byte) {
		got <- userID + "=" + string(payload)
	}))

	require.NoError(t, b.Publish(context.Background(), "alice", []byte("hi")))
	assert.Equal(t, "alice=hi", <-got)

	require.NoError(t, b.Close())
	require.NoError(t, b.Publish(context.Background(), "alice", []byte("hi")))
	assert.Empty(t, got)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "dm:user:42", RedisChannel("42"))
	assert.Equal(t, "dm.user.42", NATSSubject("42"))
}

func testBrokerRoundTrip(t *testing.T, b Broker) {
	t.Helper()
	got := make(chan [2]string, 1)
	require.NoError(t, b.Subscribe(context.Background(), func(userID string, payload []byte) {
		got <- [2]string{userID, string(payload)}
	}))

	require.NoError(t, b.Publish(context.Background(), "user-7", []byte(`{"type":"new-message"}`)))

	select {
	case msg := <-got:
		assert.Equal(t, "user-7", msg[0])
		assert.JSONEq(t, `{"type":"new-message"}`, msg[1])
	case <-time.After(3 * time.Second):
		t.Fatal("message not received")
	}
}

func TestRedisBroker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	b, err := NewRedisBroker(url)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer b.Close()

	testBrokerRoundTrip(t, b)
}

func TestNATSBroker(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}
	b, err := NewNATSBroker(url)
	if err != nil {
		t.Skipf("nats unavailable: %v", err)
	}
	defer b.Close()

	testBrokerRoundTrip(t, b)
}
