package dto

import (
	"time"

	"gorm.io/datatypes"
)

// Request structures

type SendMessageRequest struct {
	RecipientID string         `json:"recipient_id" validate:"required,max=64"`
	Body        *string        `json:"body,omitempty" validate:"omitempty,max=5000"`
	MediaKey    *string        `json:"media_key,omitempty" validate:"omitempty,max=512"`
	Kind        string         `json:"kind,omitempty" validate:"message_kind"` // text, media, gif, shared-post
	Payload     datatypes.JSON `json:"payload,omitempty"`
}

type CreateConversationRequest struct {
	OtherUserID string `json:"other_user_id" validate:"required,max=64"`
}

type ListMessagesQuery struct {
	Limit int `form:"limit" validate:"min=0,max=500"`
}

// Response structures

type ConversationResponse struct {
	ID                 string     `json:"id"`
	OtherUserID        string     `json:"other_user_id"`
	OtherUserName      string     `json:"other_user_name"`
	OtherUserAvatarURL *string    `json:"other_user_avatar_url"`
	UnreadCount        int64      `json:"unread_count"`
	LastMessage        *string    `json:"last_message"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

type MessageResponse struct {
	ID              string         `json:"id"`
	ConversationID  string         `json:"conversation_id"`
	SenderID        string         `json:"sender_id"`
	SenderName      string         `json:"sender_name"`
	Body            *string        `json:"body"`
	MediaKey        *string        `json:"media_key,omitempty"`
	MediaURL        *string        `json:"media_url"`
	Kind            string         `json:"kind"`
	Payload         datatypes.JSON `json:"payload"`
	CreatedAt       time.Time      `json:"created_at"`
	IsRead          bool           `json:"is_read"`
	ReadByRecipient bool           `json:"read_by_recipient"`
}

// NewMessageEventData - данные события new-message: сообщение и строка для превью
type NewMessageEventData struct {
	MessageResponse
	Preview string `json:"preview"`
}

type MarkReadResponse struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Marked         int64  `json:"marked"`
}

type UnreadCountResponse struct {
	Total int64 `json:"total"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
