package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageKind string

const (
	MessageKindText       MessageKind = "text"
	MessageKindMedia      MessageKind = "media"
	MessageKindGIF        MessageKind = "gif"
	MessageKindSharedPost MessageKind = "shared-post"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindMedia, MessageKindGIF, MessageKindSharedPost:
		return true
	}
	return false
}

// Message - сообщение диалога. Не редактируется, только удаляется.
// MediaKey, Kind и Payload есть не во всех развертываниях схемы,
// см. SchemaCapabilities в репозитории.
type Message struct {
	ID             string         `gorm:"primaryKey;size:36"`
	ConversationID string         `gorm:"size:36;not null;index:idx_messages_conversation_created,priority:1"`
	SenderID       string         `gorm:"size:64;not null;index"`
	SenderName     string         `gorm:"size:255;not null;default:''"`
	Body           *string        `gorm:"type:text"`
	MediaKey       *string        `gorm:"size:512"`
	Kind           MessageKind    `gorm:"type:varchar(20);not null;default:'text'"`
	Payload        datatypes.JSON `gorm:"column:payload"`
	CreatedAt      time.Time      `gorm:"not null;index:idx_messages_conversation_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// PreviewText - текст для снимка последнего сообщения и пушей.
// Пустое тело заменяется меткой по типу сообщения.
func PreviewText(body *string, kind MessageKind) string {
	if body != nil && *body != "" {
		return *body
	}
	switch kind {
	case MessageKindMedia:
		return "Media"
	case MessageKindGIF:
		return "GIF"
	case MessageKindSharedPost:
		return "Shared a post"
	default:
		return "Message"
	}
}
