package chat

import (
	"time"

	"mwork_messaging/internal/models/chat"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRow - диалог глазами одного участника
type ConversationRow struct {
	ConversationID string
	OtherUserID    string
	OtherName      string
	UnreadCount    int64
	LastMessage    *string
	LastMessageAt  *time.Time
	CreatedAt      time.Time
}

// ConversationRepository - диалоги и участники.
// Все методы принимают db: пул или текущую транзакцию.
type ConversationRepository interface {
	GetOrCreate(db *gorm.DB, userA, userB, nameA, nameB string) (conversationID string, created bool, err error)
	FindByID(db *gorm.DB, conversationID string) (*chat.Conversation, error)
	FindParticipant(db *gorm.DB, conversationID, userID string) (*chat.ConversationParticipant, error)
	FindOtherParticipant(db *gorm.DB, conversationID, userID string) (*chat.ConversationParticipant, error)
	LockParticipant(db *gorm.DB, conversationID, userID string) (*chat.ConversationParticipant, error)
	ListForUser(db *gorm.DB, userID string) ([]ConversationRow, error)
	FindSummary(db *gorm.DB, conversationID, userID string) (*ConversationRow, error)

	UpdateLastMessage(db *gorm.DB, conversationID string, text *string, at *time.Time) error
	IncrementUnread(db *gorm.DB, conversationID, userID string) error
	DecrementUnread(db *gorm.DB, conversationID, userID string) error
	RecountUnread(db *gorm.DB, conversationID, userID string) error
	SumUnread(db *gorm.DB, userID string) (int64, error)

	Delete(db *gorm.DB, conversationID string) error
}

type ConversationRepositoryImpl struct{}

func NewConversationRepository() ConversationRepository {
	return &ConversationRepositoryImpl{}
}

// GetOrCreate находит диалог пары по pair_key или создает его.
// При гонке двух первых сообщений вставка проигравшего ничего не делает
// (ON CONFLICT DO NOTHING), и он перечитывает диалог победителя.
// Участников создает только победитель, имена сохраняются снимком.
func (r *ConversationRepositoryImpl) GetOrCreate(db *gorm.DB, userA, userB, nameA, nameB string) (string, bool, error) {
	key := chat.PairKey(userA, userB)

	if id, err := r.findIDByPairKey(db, key); err != nil || id != "" {
		return id, false, err
	}

	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:        uuid.NewString(),
		PairKey:   key,
		CreatedAt: now,
	}
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoNothing: true,
	}).Create(&conv)
	if res.Error != nil {
		return "", false, res.Error
	}

	if res.RowsAffected == 0 {
		id, err := r.findIDByPairKey(db, key)
		if err != nil {
			return "", false, err
		}
		if id == "" {
			return "", false, ErrConversationNotFound
		}
		return id, false, nil
	}

	participants := []chat.ConversationParticipant{
		{ConversationID: conv.ID, UserID: userA, DisplayName: nameA, CreatedAt: now},
		{ConversationID: conv.ID, UserID: userB, DisplayName: nameB, CreatedAt: now},
	}
	if err := db.Create(&participants).Error; err != nil {
		return "", false, err
	}

	return conv.ID, true, nil
}

func (r *ConversationRepositoryImpl) findIDByPairKey(db *gorm.DB, key string) (string, error) {
	var conv chat.Conversation
	err := db.Select("id").Where("pair_key = ?", key).Limit(1).Find(&conv).Error
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (r *ConversationRepositoryImpl) FindByID(db *gorm.DB, conversationID string) (*chat.Conversation, error) {
	var conv chat.Conversation
	res := db.Where("id = ?", conversationID).Limit(1).Find(&conv)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrConversationNotFound
	}
	return &conv, nil
}

func (r *ConversationRepositoryImpl) FindParticipant(db *gorm.DB, conversationID, userID string) (*chat.ConversationParticipant, error) {
	var p chat.ConversationParticipant
	res := db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).Limit(1).Find(&p)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrParticipantNotFound
	}
	return &p, nil
}

// LockParticipant берет строку участника FOR UPDATE до конца транзакции.
// Отправки в диалог (IncrementUnread) ждут этой блокировки, поэтому чтение
// непрочитанных и запись счетчика не разъезжаются. SQLite блокировку строк не поддерживает.
func (r *ConversationRepositoryImpl) LockParticipant(db *gorm.DB, conversationID, userID string) (*chat.ConversationParticipant, error) {
	var p chat.ConversationParticipant
	res := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Limit(1).
		Find(&p)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrParticipantNotFound
	}
	return &p, nil
}

func (r *ConversationRepositoryImpl) FindOtherParticipant(db *gorm.DB, conversationID, userID string) (*chat.ConversationParticipant, error) {
	var p chat.ConversationParticipant
	res := db.Where("conversation_id = ? AND user_id <> ?", conversationID, userID).Limit(1).Find(&p)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrParticipantNotFound
	}
	return &p, nil
}

const conversationRowQuery = `
SELECT c.id AS conversation_id,
       o.user_id AS other_user_id,
       o.display_name AS other_name,
       me.unread_count AS unread_count,
       c.last_message AS last_message,
       c.last_message_at AS last_message_at,
       c.created_at AS created_at
FROM conversation_participants me
JOIN conversations c ON c.id = me.conversation_id
JOIN conversation_participants o ON o.conversation_id = me.conversation_id AND o.user_id <> me.user_id
WHERE me.user_id = ?`

// ListForUser - диалоги пользователя, свежие сверху, без сообщений в конце
func (r *ConversationRepositoryImpl) ListForUser(db *gorm.DB, userID string) ([]ConversationRow, error) {
	rows := make([]ConversationRow, 0)
	err := db.Raw(conversationRowQuery+`
ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC, c.id DESC`, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ConversationRepositoryImpl) FindSummary(db *gorm.DB, conversationID, userID string) (*ConversationRow, error) {
	var rows []ConversationRow
	err := db.Raw(conversationRowQuery+` AND c.id = ?`, userID, conversationID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrConversationNotFound
	}
	return &rows[0], nil
}

// UpdateLastMessage перезаписывает снимок последнего сообщения; nil очищает его
func (r *ConversationRepositoryImpl) UpdateLastMessage(db *gorm.DB, conversationID string, text *string, at *time.Time) error {
	res := db.Model(&chat.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message":    text,
			"last_message_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// IncrementUnread атомарно увеличивает счетчик на 1.
// Параллельные отправки в один диалог сериализуются на блокировке строки.
func (r *ConversationRepositoryImpl) IncrementUnread(db *gorm.DB, conversationID, userID string) error {
	return r.updateUnread(db, conversationID, userID, gorm.Expr("unread_count + ?", 1))
}

// DecrementUnread уменьшает счетчик на 1, но не ниже нуля
func (r *ConversationRepositoryImpl) DecrementUnread(db *gorm.DB, conversationID, userID string) error {
	return r.updateUnread(db, conversationID, userID,
		gorm.Expr("CASE WHEN unread_count > 0 THEN unread_count - 1 ELSE 0 END"))
}

// RecountUnread выставляет счетчик равным числу входящих сообщений без отметки участника.
// После markRead это ноль, если в диалог не успело прийти новое сообщение.
func (r *ConversationRepositoryImpl) RecountUnread(db *gorm.DB, conversationID, userID string) error {
	return r.updateUnread(db, conversationID, userID, gorm.Expr(`(
SELECT COUNT(*) FROM messages m
WHERE m.conversation_id = ? AND m.sender_id <> ?
  AND NOT EXISTS (SELECT 1 FROM message_read_receipts r WHERE r.message_id = m.id AND r.user_id = ?))`,
		conversationID, userID, userID))
}

func (r *ConversationRepositoryImpl) updateUnread(db *gorm.DB, conversationID, userID string, value interface{}) error {
	res := db.Model(&chat.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		UpdateColumn("unread_count", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

func (r *ConversationRepositoryImpl) SumUnread(db *gorm.DB, userID string) (int64, error) {
	return sumUnread(db, userID)
}

// Delete удаляет диалог целиком: отметки о прочтении, сообщения, участников, сам диалог
func (r *ConversationRepositoryImpl) Delete(db *gorm.DB, conversationID string) error {
	if err := deleteReceiptsForConversation(db, conversationID); err != nil {
		return err
	}
	if err := db.Where("conversation_id = ?", conversationID).Delete(&chat.Message{}).Error; err != nil {
		return err
	}
	if err := db.Where("conversation_id = ?", conversationID).Delete(&chat.ConversationParticipant{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", conversationID).Delete(&chat.Conversation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func sumUnread(db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.Model(&chat.ConversationParticipant{}).
		Select("COALESCE(SUM(unread_count), 0)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	return total, err
}
