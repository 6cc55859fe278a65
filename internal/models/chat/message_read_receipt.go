package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageReadReceipt - отметка о прочтении сообщения пользователем.
// Одна на пару (сообщение, пользователь).
type MessageReadReceipt struct {
	ID        string    `gorm:"primaryKey;size:36"`
	MessageID string    `gorm:"size:36;not null;uniqueIndex:idx_receipts_message_user,priority:1"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_receipts_message_user,priority:2;index"`
	ReadAt    time.Time `gorm:"not null"`
}

func (MessageReadReceipt) TableName() string {
	return "message_read_receipts"
}

func (r *MessageReadReceipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
