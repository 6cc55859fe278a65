package chat

import (
	"time"

	"mwork_messaging/internal/models/chat"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const receiptBatchSize = 500

type ReadReceiptRepository interface {
	// MarkRead ставит отметки на все сообщения otherID, которые reader еще не читал.
	// Возвращает число новых отметок. Пересчет счетчика делает вызывающий в той же транзакции.
	MarkRead(db *gorm.DB, conversationID, readerID, otherID string) (int64, error)
	IsReadBy(db *gorm.DB, messageID, userID string) (bool, error)
	GetUnreadTotal(db *gorm.DB, userID string) (int64, error)
	DeleteForMessage(db *gorm.DB, messageID string) error
	DeleteForConversation(db *gorm.DB, conversationID string) error
}

type ReadReceiptRepositoryImpl struct{}

func NewReadReceiptRepository() ReadReceiptRepository {
	return &ReadReceiptRepositoryImpl{}
}

func (r *ReadReceiptRepositoryImpl) MarkRead(db *gorm.DB, conversationID, readerID, otherID string) (int64, error) {
	var ids []string
	err := db.Model(&chat.Message{}).
		Where("conversation_id = ? AND sender_id = ?", conversationID, otherID).
		Where("NOT EXISTS (SELECT 1 FROM message_read_receipts r WHERE r.message_id = messages.id AND r.user_id = ?)", readerID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	receipts := make([]chat.MessageReadReceipt, 0, len(ids))
	for _, id := range ids {
		receipts = append(receipts, chat.MessageReadReceipt{MessageID: id, UserID: readerID, ReadAt: now})
	}

	// Дубликаты от параллельного markRead молча пропускаются
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).CreateInBatches(&receipts, receiptBatchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// IsReadBy проверяет, читал ли пользователь сообщение
func (r *ReadReceiptRepositoryImpl) IsReadBy(db *gorm.DB, messageID, userID string) (bool, error) {
	var count int64
	err := db.Model(&chat.MessageReadReceipt{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&count).Error
	return count > 0, err
}

// GetUnreadTotal - сумма кэшированных счетчиков по всем диалогам пользователя
func (r *ReadReceiptRepositoryImpl) GetUnreadTotal(db *gorm.DB, userID string) (int64, error) {
	return sumUnread(db, userID)
}

func (r *ReadReceiptRepositoryImpl) DeleteForMessage(db *gorm.DB, messageID string) error {
	return deleteReceiptsForMessage(db, messageID)
}

func (r *ReadReceiptRepositoryImpl) DeleteForConversation(db *gorm.DB, conversationID string) error {
	return deleteReceiptsForConversation(db, conversationID)
}

func deleteReceiptsForMessage(db *gorm.DB, messageID string) error {
	return db.Where("message_id = ?", messageID).Delete(&chat.MessageReadReceipt{}).Error
}

func deleteReceiptsForConversation(db *gorm.DB, conversationID string) error {
	messageIDs := db.Model(&chat.Message{}).Select("id").Where("conversation_id = ?", conversationID)
	return db.Where("message_id IN (?)", messageIDs).Delete(&chat.MessageReadReceipt{}).Error
}
