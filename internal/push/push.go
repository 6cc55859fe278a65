package push

import (
	"context"
	"encoding/json"
	"fmt"

	"mwork_messaging/internal/realtime"
)

const TaskTypeDirectMessage = "dm:push"

// Notification - полезная нагрузка задачи офлайн-пуша.
// Регистрация устройств и доставка живут в отдельном воркере.
type Notification struct {
	RecipientID    string `json:"recipient_id"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Preview        string `json:"preview"`
}

// newMessageData - поля данных события new-message, нужные пушу
type newMessageData struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Preview        string `json:"preview"`
}

// FromEvent строит уведомление из события new-message.
// Для остальных типов возвращает false.
func FromEvent(e realtime.Event) (Notification, bool, error) {
	if e.Type != realtime.EventNewMessage {
		return Notification{}, false, nil
	}

	raw, err := json.Marshal(e.Data)
	if err != nil {
		return Notification{}, false, fmt.Errorf("encode event data: %w", err)
	}
	var data newMessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return Notification{}, false, fmt.Errorf("decode event data: %w", err)
	}

	return Notification{
		RecipientID:    e.UserID,
		ConversationID: data.ConversationID,
		MessageID:      data.ID,
		SenderID:       data.SenderID,
		SenderName:     data.SenderName,
		Preview:        data.Preview,
	}, true, nil
}

// NoopSink - пуши выключены
type NoopSink struct{}

func (NoopSink) Handle(context.Context, realtime.Event) error { return nil }

func (NoopSink) Close() error { return nil }
