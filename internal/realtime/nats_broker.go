package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mwork_messaging/internal/logger"

	"github.com/nats-io/nats.go"
)

const (
	natsSubjectPrefix   = "dm.user."
	natsSubjectWildcard = natsSubjectPrefix + "*"
)

// NATSBroker - fan-out через NATS: subject dm.user.{id}
type NATSBroker struct {
	conn *nats.Conn

	mu  sync.Mutex
	sub *nats.Subscription
	log *slog.Logger
}

func NewNATSBroker(url string) (*NATSBroker, error) {
	log := logger.Component("nats_broker")
	opts := []nats.Option{
		nats.Name("mwork-messaging"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected from NATS", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.Timeout(10 * time.Second),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSBroker{conn: conn, log: log}, nil
}

// NATSSubject - subject пользователя. Идентификаторы без точек (uuid).
func NATSSubject(userID string) string {
	return natsSubjectPrefix + userID
}

func (b *NATSBroker) Publish(_ context.Context, userID string, payload []byte) error {
	return b.conn.Publish(NATSSubject(userID), payload)
}

func (b *NATSBroker) Subscribe(_ context.Context, handler Handler) error {
	sub, err := b.conn.Subscribe(natsSubjectWildcard, func(msg *nats.Msg) {
		handler(strings.TrimPrefix(msg.Subject, natsSubjectPrefix), msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()
	return b.conn.Flush()
}

func (b *NATSBroker) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if sub != nil {
		_ = sub.Unsubscribe()
	}
	b.conn.Close()
	return nil
}
