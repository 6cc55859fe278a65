package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationParticipant - участие пользователя в диалоге.
// DisplayName - снимок имени на момент создания диалога, UnreadCount - кэш
// непрочитанных сообщений от собеседника.
type ConversationParticipant struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID string    `gorm:"size:36;not null;uniqueIndex:idx_participants_conversation_user,priority:1"`
	UserID         string    `gorm:"size:64;not null;uniqueIndex:idx_participants_conversation_user,priority:2;index"`
	DisplayName    string    `gorm:"size:255;not null;default:''"`
	UnreadCount    int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

func (p *ConversationParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
