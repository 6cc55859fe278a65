package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mwork_messaging/internal/config"
	"mwork_messaging/internal/realtime"

	"github.com/hibiken/asynq"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqSink ставит задачу dm:push на каждое новое сообщение
type AsynqSink struct {
	client   enqueuer
	queue    string
	maxRetry int
}

// Sink - то, что получает app: обработчик событий с закрытием
type Sink interface {
	realtime.Sink
	Close() error
}

// NewSink возвращает AsynqSink при push.enabled, иначе NoopSink
func NewSink(cfg *config.Config) (Sink, error) {
	if !cfg.Push.Enabled {
		return NoopSink{}, nil
	}
	return NewAsynqSink(cfg.Push.RedisURL, cfg.Push.Queue)
}

func NewAsynqSink(redisURL, queue string) (*AsynqSink, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return newAsynqSink(asynq.NewClient(opt), queue), nil
}

func newAsynqSink(client enqueuer, queue string) *AsynqSink {
	if queue == "" {
		queue = "default"
	}
	return &AsynqSink{client: client, queue: queue, maxRetry: 3}
}

func (s *AsynqSink) Handle(ctx context.Context, e realtime.Event) error {
	n, ok, err := FromEvent(e)
	if err != nil || !ok {
		return err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("asynq: encode notification: %w", err)
	}

	task := asynq.NewTask(TaskTypeDirectMessage, payload)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue(s.queue), asynq.MaxRetry(s.maxRetry)); err != nil {
		return fmt.Errorf("asynq: enqueue %s: %w", TaskTypeDirectMessage, err)
	}
	return nil
}

func (s *AsynqSink) Close() error {
	return s.client.Close()
}
