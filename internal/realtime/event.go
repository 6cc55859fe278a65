package realtime

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventNewMessage          EventType = "new-message"
	EventMessageRead         EventType = "message-read"
	EventConversationUpdated EventType = "conversation-updated"
	EventUnreadCountUpdate   EventType = "unread-count-update"
)

// Event - сообщение для клиентских сессий одного пользователя
type Event struct {
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Data      interface{} `json:"data"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewEvent(eventType EventType, userID string, data interface{}) Event {
	return Event{
		Type:      eventType,
		UserID:    userID,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// Encode сериализует событие в JSON-конверт
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// UnreadCountData - данные unread-count-update
type UnreadCountData struct {
	Total int64 `json:"total"`
}

// MessageReadData - данные message-read: читатель прочитал count сообщений диалога
type MessageReadData struct {
	ConversationID string    `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
	Count          int64     `json:"count"`
	ReadAt         time.Time `json:"read_at"`
}
