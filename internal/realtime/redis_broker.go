package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"mwork_messaging/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	redisChannelPrefix  = "dm:user:"
	redisChannelPattern = redisChannelPrefix + "*"
)

// RedisBroker - fan-out через Redis Pub/Sub: канал dm:user:{id}
type RedisBroker struct {
	client *redis.Client

	mu     sync.Mutex
	pubsub *redis.PubSub
	log    *slog.Logger
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBrokerFromClient(client), nil
}

func NewRedisBrokerFromClient(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client, log: logger.Component("redis_broker")}
}

func RedisChannel(userID string) string {
	return redisChannelPrefix + userID
}

func (b *RedisBroker) Publish(ctx context.Context, userID string, payload []byte) error {
	return b.client.Publish(ctx, RedisChannel(userID), payload).Err()
}

// Subscribe подписывается на dm:user:* и читает сообщения в отдельной горутине
func (b *RedisBroker) Subscribe(ctx context.Context, handler Handler) error {
	ps := b.client.PSubscribe(ctx, redisChannelPattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}

	b.mu.Lock()
	b.pubsub = ps
	b.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			userID := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
			handler(userID, []byte(msg.Payload))
		}
		b.log.Info("redis subscription closed")
	}()
	return nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	ps := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	if ps != nil {
		_ = ps.Close()
	}
	return b.client.Close()
}
