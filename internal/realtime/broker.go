package realtime

import (
	"context"
	"fmt"
	"sync"

	"mwork_messaging/internal/config"
)

// Handler получает payload, адресованный userID
type Handler func(userID string, payload []byte)

// Broker - шина доставки событий между экземплярами сервиса.
// Publish отправляет событие пользователю, Subscribe доставляет в handler
// события всех пользователей (локальный hub сам отбросит тех, у кого нет сессий).
type Broker interface {
	Publish(ctx context.Context, userID string, payload []byte) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// NewBroker создает брокер по realtime.broker
func NewBroker(cfg *config.Config) (Broker, error) {
	switch cfg.Realtime.Broker {
	case "", "local":
		return NewLocalBroker(), nil
	case "redis":
		return NewRedisBroker(cfg.Realtime.RedisURL)
	case "nats":
		return NewNATSBroker(cfg.Realtime.NATSURL)
	default:
		return nil, fmt.Errorf("unknown realtime broker %q", cfg.Realtime.Broker)
	}
}

// LocalBroker - доставка внутри процесса, для одного экземпляра
type LocalBroker struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

func (b *LocalBroker) Publish(_ context.Context, userID string, payload []byte) error {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(userID, payload)
	}
	return nil
}

func (b *LocalBroker) Subscribe(_ context.Context, handler Handler) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
	return nil
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()
	return nil
}
