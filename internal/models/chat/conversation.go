package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation - диалог двух пользователей.
// PairKey однозначно определяет пару и защищает от дублей при гонке первых сообщений.
type Conversation struct {
	ID            string     `gorm:"primaryKey;size:36"`
	PairKey       string     `gorm:"size:160;not null;uniqueIndex:idx_conversations_pair_key"`
	LastMessage   *string    `gorm:"type:text"`
	LastMessageAt *time.Time `gorm:"index"`
	CreatedAt     time.Time  `gorm:"not null"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// PairKey возвращает канонический ключ пары: меньший id, двоеточие, больший.
func PairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}
