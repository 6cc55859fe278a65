package realtime

import (
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"

	"mwork_messaging/internal/logger"

	"gorm.io/gorm"
)

const lockStripes = 64

// Outbox - очередь событий после коммита.
// Commit держит блокировки всех затронутых пользователей от коммита до
// постановки в очередь, поэтому для каждого пользователя порядок событий
// в очереди совпадает с порядком коммитов. Очередь ограничена: при
// переполнении событие теряется с предупреждением в логе.
type Outbox struct {
	queue   chan Event
	done    chan struct{}
	once    sync.Once
	stripes [lockStripes]sync.Mutex
	log     *slog.Logger
}

func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = 1024
	}
	return &Outbox{
		queue: make(chan Event, size),
		done:  make(chan struct{}),
		log:   logger.Component("outbox"),
	}
}

// Commit коммитит транзакцию и ставит события в очередь.
// При ошибке коммита события отбрасываются.
func (o *Outbox) Commit(tx *gorm.DB, events ...Event) error {
	unlock := o.lock(events)
	defer unlock()

	if err := tx.Commit().Error; err != nil {
		return err
	}
	o.enqueue(events)
	return nil
}

// Publish ставит события в очередь без транзакции
func (o *Outbox) Publish(events ...Event) {
	unlock := o.lock(events)
	defer unlock()
	o.enqueue(events)
}

// Events - канал для Publisher
func (o *Outbox) Events() <-chan Event {
	return o.queue
}

// Done закрывается при Close
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Len - текущая длина очереди
func (o *Outbox) Len() int {
	return len(o.queue)
}

// Close прекращает прием событий. Уже принятые остаются в очереди.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.done) })
}

func (o *Outbox) enqueue(events []Event) {
	for _, e := range events {
		select {
		case <-o.done:
			o.log.Warn("outbox closed, event dropped", "type", e.Type, "user_id", e.UserID)
			continue
		default:
		}

		select {
		case o.queue <- e:
		default:
			o.log.Warn("outbox full, event dropped", "type", e.Type, "user_id", e.UserID, "capacity", cap(o.queue))
		}
	}
}

func (o *Outbox) lock(events []Event) func() {
	idx := stripeIndexes(events)
	for _, i := range idx {
		o.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			o.stripes[idx[j]].Unlock()
		}
	}
}

// stripeIndexes - отсортированные уникальные номера блокировок.
// Единый порядок захвата исключает взаимоблокировку.
func stripeIndexes(events []Event) []int {
	seen := make(map[int]struct{}, len(events))
	idx := make([]int, 0, len(events))
	for _, e := range events {
		i := stripeFor(e.UserID)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func stripeFor(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % lockStripes)
}
