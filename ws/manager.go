package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"mwork_messaging/internal/logger"
)

var ErrHubStopped = errors.New("ws: hub stopped")

// Hub - сессии websocket по пользователям. У одного пользователя
// может быть несколько вкладок и устройств, событие получают все.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logger.Component("ws_hub"),
	}
}

// Run обслуживает регистрацию сессий до отмены ctx, затем закрывает все сессии
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			sessions, ok := h.clients[client.UserID]
			if !ok {
				sessions = make(map[*Client]struct{})
				h.clients[client.UserID] = sessions
			}
			sessions[client] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("client registered", "user_id", client.UserID, "sessions", len(sessions))

		case client := <-h.unregister:
			h.remove(client)

		case <-ctx.Done():
			h.mu.Lock()
			for userID, sessions := range h.clients {
				for client := range sessions {
					close(client.send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) join(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := sessions[client]; !ok {
		return
	}
	close(client.send)
	delete(sessions, client)
	if len(sessions) == 0 {
		delete(h.clients, client.UserID)
	}
	h.log.Debug("client unregistered", "user_id", client.UserID, "sessions", len(sessions))
}

// Deliver отправляет готовый JSON во все сессии пользователя.
// Сессия с заполненным буфером отключается: клиент перечитает состояние при переподключении.
func (h *Hub) Deliver(userID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			h.log.Warn("slow client dropped", "user_id", userID)
			go h.leave(client)
		}
	}
}

// SessionCount - число открытых сессий пользователя
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
