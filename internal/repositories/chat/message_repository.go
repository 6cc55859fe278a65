package chat

import (
	"bytes"
	"strings"
	"time"

	"mwork_messaging/internal/models/chat"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SchemaCapabilities - какие необязательные колонки messages есть в базе.
// Определяется один раз при старте, репозиторий только ветвится по флагам.
type SchemaCapabilities struct {
	Media   bool
	Kind    bool
	Payload bool
}

// FullSchema - все колонки на месте (схема после AutoMigrate)
func FullSchema() SchemaCapabilities {
	return SchemaCapabilities{Media: true, Kind: true, Payload: true}
}

// DetectSchema проверяет наличие необязательных колонок через Migrator
func DetectSchema(db *gorm.DB) SchemaCapabilities {
	m := db.Migrator()
	return SchemaCapabilities{
		Media:   m.HasColumn(&chat.Message{}, "media_key"),
		Kind:    m.HasColumn(&chat.Message{}, "kind"),
		Payload: m.HasColumn(&chat.Message{}, "payload"),
	}
}

func (c SchemaCapabilities) omitted() []string {
	var cols []string
	if !c.Media {
		cols = append(cols, "media_key")
	}
	if !c.Kind {
		cols = append(cols, "kind")
	}
	if !c.Payload {
		cols = append(cols, "payload")
	}
	return cols
}

func (c SchemaCapabilities) columns(alias string) string {
	cols := []string{"id", "conversation_id", "sender_id", "sender_name", "body", "created_at"}
	if c.Media {
		cols = append(cols, "media_key")
	}
	if c.Kind {
		cols = append(cols, "kind")
	}
	if c.Payload {
		cols = append(cols, "payload")
	}
	if alias != "" {
		for i, col := range cols {
			cols[i] = alias + "." + col
		}
	}
	return strings.Join(cols, ", ")
}

// NewMessage - данные для вставки сообщения
type NewMessage struct {
	ConversationID string
	SenderID       string
	SenderName     string
	Body           *string
	MediaKey       *string
	Kind           chat.MessageKind
	Payload        datatypes.JSON
}

// MessageRow - сообщение с флагами прочтения относительно зрителя
type MessageRow struct {
	chat.Message
	ReadByViewer bool
	ReadByOther  bool
}

type MessageRepository interface {
	Capabilities() SchemaCapabilities
	Create(db *gorm.DB, in NewMessage) (*chat.Message, error)
	FindByID(db *gorm.DB, messageID string) (*chat.Message, error)
	FindLatest(db *gorm.DB, conversationID string) (*chat.Message, error)
	ListForViewer(db *gorm.DB, conversationID, viewerID, otherID string, limit int) ([]MessageRow, error)
	Delete(db *gorm.DB, messageID, requesterID string) (bool, error)
}

type MessageRepositoryImpl struct {
	caps SchemaCapabilities
}

func NewMessageRepository(caps SchemaCapabilities) MessageRepository {
	return &MessageRepositoryImpl{caps: caps}
}

func (r *MessageRepositoryImpl) Capabilities() SchemaCapabilities {
	return r.caps
}

// Create вставляет сообщение. Отсутствующие в схеме колонки не пишутся,
// а вернувшееся сообщение получает kind=text без медиа и вложения.
func (r *MessageRepositoryImpl) Create(db *gorm.DB, in NewMessage) (*chat.Message, error) {
	kind := in.Kind
	if kind == "" {
		kind = chat.MessageKindText
	}
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderName:     in.SenderName,
		Body:           in.Body,
		MediaKey:       in.MediaKey,
		Kind:           kind,
		Payload:        in.Payload,
		CreatedAt:      time.Now().UTC(),
	}

	q := db
	if omit := r.caps.omitted(); len(omit) > 0 {
		q = q.Omit(omit...)
	}
	if err := q.Create(&msg).Error; err != nil {
		return nil, err
	}

	r.normalize(&msg)
	return &msg, nil
}

func (r *MessageRepositoryImpl) FindByID(db *gorm.DB, messageID string) (*chat.Message, error) {
	var msg chat.Message
	res := db.Select(r.caps.columns("")).Where("id = ?", messageID).Limit(1).Find(&msg)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrMessageNotFound
	}
	r.normalize(&msg)
	return &msg, nil
}

// FindLatest возвращает самое новое сообщение диалога или nil, если их нет
func (r *MessageRepositoryImpl) FindLatest(db *gorm.DB, conversationID string) (*chat.Message, error) {
	var msg chat.Message
	res := db.Select(r.caps.columns("")).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Order("id DESC").
		Limit(1).
		Find(&msg)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	r.normalize(&msg)
	return &msg, nil
}

type messageScan struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	Body           *string
	MediaKey       *string
	Kind           string
	Payload        datatypes.JSON
	CreatedAt      time.Time
	ReadByViewer   bool
	ReadByOther    bool
}

// ListForViewer возвращает сообщения в хронологическом порядке.
// При limit > 0 берутся последние limit сообщений.
func (r *MessageRepositoryImpl) ListForViewer(db *gorm.DB, conversationID, viewerID, otherID string, limit int) ([]MessageRow, error) {
	q := db.Table("messages AS m").
		Select(r.caps.columns("m")+`,
			EXISTS (SELECT 1 FROM message_read_receipts rv WHERE rv.message_id = m.id AND rv.user_id = ?) AS read_by_viewer,
			EXISTS (SELECT 1 FROM message_read_receipts ro WHERE ro.message_id = m.id AND ro.user_id = ?) AS read_by_other`,
			viewerID, otherID).
		Where("m.conversation_id = ?", conversationID)

	if limit > 0 {
		q = q.Order("m.created_at DESC").Order("m.id DESC").Limit(limit)
	} else {
		q = q.Order("m.created_at ASC").Order("m.id ASC")
	}

	var scanned []messageScan
	if err := q.Scan(&scanned).Error; err != nil {
		return nil, err
	}

	rows := make([]MessageRow, len(scanned))
	for i, s := range scanned {
		idx := i
		if limit > 0 {
			idx = len(scanned) - 1 - i
		}
		msg := chat.Message{
			ID:             s.ID,
			ConversationID: s.ConversationID,
			SenderID:       s.SenderID,
			SenderName:     s.SenderName,
			Body:           s.Body,
			MediaKey:       s.MediaKey,
			Kind:           chat.MessageKind(s.Kind),
			Payload:        s.Payload,
			CreatedAt:      s.CreatedAt,
		}
		r.normalize(&msg)
		rows[idx] = MessageRow{Message: msg, ReadByViewer: s.ReadByViewer, ReadByOther: s.ReadByOther}
	}
	return rows, nil
}

// Delete удаляет отметки о прочтении и само сообщение, если requesterID - автор.
// Пересчет последнего сообщения и счетчиков делает сервис в той же транзакции.
func (r *MessageRepositoryImpl) Delete(db *gorm.DB, messageID, requesterID string) (bool, error) {
	var owned int64
	err := db.Model(&chat.Message{}).
		Where("id = ? AND sender_id = ?", messageID, requesterID).
		Count(&owned).Error
	if err != nil {
		return false, err
	}
	if owned == 0 {
		return false, nil
	}

	if err := deleteReceiptsForMessage(db, messageID); err != nil {
		return false, err
	}
	res := db.Where("id = ? AND sender_id = ?", messageID, requesterID).Delete(&chat.Message{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MessageRepositoryImpl) normalize(msg *chat.Message) {
	if !r.caps.Media {
		msg.MediaKey = nil
	}
	if !r.caps.Kind || msg.Kind == "" {
		msg.Kind = chat.MessageKindText
	}
	if !r.caps.Payload || isNullJSON(msg.Payload) {
		msg.Payload = nil
	}
}

func isNullJSON(j datatypes.JSON) bool {
	trimmed := bytes.TrimSpace(j)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
