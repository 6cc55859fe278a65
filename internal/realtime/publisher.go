package realtime

import (
	"context"
	"log/slog"
	"time"

	"mwork_messaging/internal/logger"
)

// Sink получает каждое опубликованное событие (например, офлайн-пуши).
// Ошибки только логируются.
type Sink interface {
	Handle(ctx context.Context, e Event) error
}

// Publisher - единственный читатель Outbox. Публикует события в брокер
// строго в порядке очереди.
type Publisher struct {
	outbox         *Outbox
	broker         Broker
	sinks          []Sink
	publishTimeout time.Duration
	log            *slog.Logger
}

func NewPublisher(outbox *Outbox, broker Broker, sinks ...Sink) *Publisher {
	return &Publisher{
		outbox:         outbox,
		broker:         broker,
		sinks:          sinks,
		publishTimeout: 5 * time.Second,
		log:            logger.Component("publisher"),
	}
}

// Run блокируется до отмены ctx или закрытия Outbox, после чего
// дописывает то, что уже лежит в очереди.
func (p *Publisher) Run(ctx context.Context) {
	p.log.Info("publisher started")
	defer p.log.Info("publisher stopped")

	for {
		select {
		case e := <-p.outbox.Events():
			p.deliver(ctx, e)
		case <-ctx.Done():
			p.drain()
			return
		case <-p.outbox.Done():
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()
	for {
		select {
		case e := <-p.outbox.Events():
			p.deliver(ctx, e)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, e Event) {
	payload, err := e.Encode()
	if err != nil {
		p.log.Error("failed to encode event", "error", err.Error(), "type", e.Type)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.publishTimeout)
	defer cancel()

	if err := p.broker.Publish(pubCtx, e.UserID, payload); err != nil {
		p.log.Warn("failed to publish event", "error", err.Error(), "type", e.Type, "user_id", e.UserID)
	}

	for _, sink := range p.sinks {
		if err := sink.Handle(pubCtx, e); err != nil {
			p.log.Warn("sink failed", "error", err.Error(), "type", e.Type, "user_id", e.UserID)
		}
	}
}
