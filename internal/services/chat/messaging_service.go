package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"mwork_messaging/internal/logger"
	"mwork_messaging/internal/models"
	modelChat "mwork_messaging/internal/models/chat"
	"mwork_messaging/internal/realtime"
	"mwork_messaging/internal/repositories"
	repoChat "mwork_messaging/internal/repositories/chat"
	"mwork_messaging/internal/services/dto"
	"mwork_messaging/internal/storage"
	"mwork_messaging/pkg/apperrors"

	"gorm.io/gorm"
)

// MessagingService - личные сообщения между двумя связанными пользователями.
// Все методы принимают 'db' (пул из запроса) и сами открывают транзакцию.
type MessagingService interface {
	SendMessage(ctx context.Context, db *gorm.DB, senderID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	GetOrCreateConversation(ctx context.Context, db *gorm.DB, userID, otherUserID string) (*dto.ConversationResponse, error)
	GetConversations(ctx context.Context, db *gorm.DB, userID string) ([]*dto.ConversationResponse, error)
	GetMessages(ctx context.Context, db *gorm.DB, conversationID, userID string, limit int) ([]*dto.MessageResponse, error)
	MarkRead(ctx context.Context, db *gorm.DB, conversationID, readerID string) (*dto.MarkReadResponse, error)
	DeleteMessage(ctx context.Context, db *gorm.DB, messageID, userID string) (bool, error)
	DeleteConversation(ctx context.Context, db *gorm.DB, conversationID, userID string) error
	GetUnreadTotal(ctx context.Context, db *gorm.DB, userID string) (int64, error)
}

type messagingService struct {
	conversations repoChat.ConversationRepository
	messages      repoChat.MessageRepository
	receipts      repoChat.ReadReceiptRepository
	users         repositories.UserRepository
	gate          ConnectionGate
	media         storage.Resolver
	outbox        *realtime.Outbox
}

func NewMessagingService(
	conversations repoChat.ConversationRepository,
	messages repoChat.MessageRepository,
	receipts repoChat.ReadReceiptRepository,
	users repositories.UserRepository,
	gate ConnectionGate,
	media storage.Resolver,
	outbox *realtime.Outbox,
) MessagingService {
	return &messagingService{
		conversations: conversations,
		messages:      messages,
		receipts:      receipts,
		users:         users,
		gate:          gate,
		media:         media,
		outbox:        outbox,
	}
}

// =======================
// Отправка
// =======================

// SendMessage - создание диалога при первом контакте, вставка сообщения,
// снимок последнего сообщения и счетчик получателя в одной транзакции.
// События уходят в outbox только после коммита.
func (s *messagingService) SendMessage(ctx context.Context, db *gorm.DB, senderID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	kind, err := validateSend(senderID, req)
	if err != nil {
		return nil, err
	}

	if !s.gate.IsConnected(ctx, senderID, req.RecipientID) {
		return nil, apperrors.ErrNotConnected
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	names, err := s.displayNames(tx, senderID, req.RecipientID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	conversationID, created, err := s.conversations.GetOrCreate(tx, senderID, req.RecipientID, names[senderID], names[req.RecipientID])
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	msg, err := s.messages.Create(tx, repoChat.NewMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     names[senderID],
		Body:           normalizeBody(req.Body),
		MediaKey:       normalizeBody(req.MediaKey),
		Kind:           kind,
		Payload:        req.Payload,
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	// Превью берется из сохраненного сообщения: на старой схеме kind всегда text
	preview := modelChat.PreviewText(msg.Body, msg.Kind)
	at := msg.CreatedAt
	if err := s.conversations.UpdateLastMessage(tx, conversationID, &preview, &at); err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := s.conversations.IncrementUnread(tx, conversationID, req.RecipientID); err != nil {
		return nil, apperrors.InternalError(err)
	}

	total, err := s.conversations.SumUnread(tx, req.RecipientID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := s.toMessageResponse(ctx, msg, false, false)

	if err := s.outbox.Commit(tx,
		realtime.NewEvent(realtime.EventNewMessage, req.RecipientID, dto.NewMessageEventData{
			MessageResponse: *resp,
			Preview:         preview,
		}),
		realtime.NewEvent(realtime.EventUnreadCountUpdate, req.RecipientID, realtime.UnreadCountData{Total: total}),
	); err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "message sent",
		"conversation_id", conversationID,
		"message_id", msg.ID,
		"recipient_id", req.RecipientID,
		"conversation_created", created,
	)
	return resp, nil
}

func validateSend(senderID string, req *dto.SendMessageRequest) (modelChat.MessageKind, error) {
	if req == nil || strings.TrimSpace(req.RecipientID) == "" {
		return "", apperrors.ErrRecipientRequired
	}
	if req.RecipientID == senderID {
		return "", apperrors.ErrCannotMessageSelf
	}

	body := normalizeBody(req.Body)
	media := normalizeBody(req.MediaKey)
	if body == nil && media == nil && isEmptyPayload(req.Payload) {
		return "", apperrors.ErrEmptyMessage
	}

	kind := modelChat.MessageKind(req.Kind)
	if kind == "" {
		if media != nil {
			return modelChat.MessageKindMedia, nil
		}
		return modelChat.MessageKindText, nil
	}
	if !kind.Valid() {
		return "", apperrors.ErrInvalidMessageKind
	}
	return kind, nil
}

// normalizeBody - пустая или пробельная строка считается отсутствующей
func normalizeBody(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func isEmptyPayload(p []byte) bool {
	trimmed := bytes.TrimSpace(p)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// =======================
// Диалоги
// =======================

func (s *messagingService) GetOrCreateConversation(ctx context.Context, db *gorm.DB, userID, otherUserID string) (*dto.ConversationResponse, error) {
	if strings.TrimSpace(otherUserID) == "" {
		return nil, apperrors.ErrRecipientRequired
	}
	if otherUserID == userID {
		return nil, apperrors.ErrCannotMessageSelf
	}

	if !s.gate.IsConnected(ctx, userID, otherUserID) {
		return nil, apperrors.ErrNotConnected
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	names, err := s.displayNames(tx, userID, otherUserID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	conversationID, _, err := s.conversations.GetOrCreate(tx, userID, otherUserID, names[userID], names[otherUserID])
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	row, err := s.conversations.FindSummary(tx, conversationID, userID)
	if err != nil {
		return nil, handleChatError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	// ✅ Аватар собирается вне транзакции, через пул
	users, err := s.users.FindByIDs(db.WithContext(ctx), []string{otherUserID})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return s.toConversationResponse(ctx, row, users), nil
}

// GetConversations - список диалогов, свежие сверху
func (s *messagingService) GetConversations(ctx context.Context, db *gorm.DB, userID string) ([]*dto.ConversationResponse, error) {
	db = db.WithContext(ctx)

	rows, err := s.conversations.ListForUser(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	otherIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		otherIDs = append(otherIDs, row.OtherUserID)
	}
	users, err := s.users.FindByIDs(db, otherIDs)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	result := make([]*dto.ConversationResponse, 0, len(rows))
	for i := range rows {
		result = append(result, s.toConversationResponse(ctx, &rows[i], users))
	}
	return result, nil
}

// DeleteConversation удаляет диалог для обоих участников
func (s *messagingService) DeleteConversation(ctx context.Context, db *gorm.DB, conversationID, userID string) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	other, err := s.requireParticipant(tx, conversationID, userID)
	if err != nil {
		return err
	}

	if err := s.conversations.Delete(tx, conversationID); err != nil {
		return handleChatError(err)
	}

	events := make([]realtime.Event, 0, 2)
	for _, id := range []string{userID, other.UserID} {
		total, err := s.conversations.SumUnread(tx, id)
		if err != nil {
			return apperrors.InternalError(err)
		}
		events = append(events, realtime.NewEvent(realtime.EventUnreadCountUpdate, id, realtime.UnreadCountData{Total: total}))
	}

	if err := s.outbox.Commit(tx, events...); err != nil {
		return apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "conversation deleted", "conversation_id", conversationID)
	return nil
}

// =======================
// Сообщения
// =======================

// GetMessages - сообщения диалога в хронологическом порядке, limit > 0 - только последние
func (s *messagingService) GetMessages(ctx context.Context, db *gorm.DB, conversationID, userID string, limit int) ([]*dto.MessageResponse, error) {
	db = db.WithContext(ctx)

	other, err := s.requireParticipant(db, conversationID, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.messages.ListForViewer(db, conversationID, userID, other.UserID, limit)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	result := make([]*dto.MessageResponse, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		// read_by_recipient имеет смысл только для своих сообщений
		readByRecipient := row.SenderID == userID && row.ReadByOther
		result = append(result, s.toMessageResponse(ctx, &row.Message, row.ReadByViewer, readByRecipient))
	}
	return result, nil
}

// DeleteMessage - удаляет автор. Снимок последнего сообщения пересчитывается,
// непрочитанное сообщение уменьшает счетчик получателя, все в одной транзакции.
func (s *messagingService) DeleteMessage(ctx context.Context, db *gorm.DB, messageID, userID string) (bool, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return false, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	msg, err := s.messages.FindByID(tx, messageID)
	if err != nil {
		return false, handleChatError(err)
	}
	if msg.SenderID != userID {
		return false, apperrors.ErrNotMessageOwner
	}

	recipient, err := s.conversations.FindOtherParticipant(tx, msg.ConversationID, userID)
	if err != nil {
		return false, handleChatError(err)
	}
	// Отметка о прочтении и счетчик получателя не меняются до конца транзакции
	if _, err := s.conversations.LockParticipant(tx, msg.ConversationID, recipient.UserID); err != nil {
		return false, handleChatError(err)
	}

	wasRead, err := s.receipts.IsReadBy(tx, msg.ID, recipient.UserID)
	if err != nil {
		return false, apperrors.InternalError(err)
	}

	deleted, err := s.messages.Delete(tx, msg.ID, userID)
	if err != nil {
		return false, apperrors.InternalError(err)
	}
	if !deleted {
		return false, apperrors.ErrMessageNotFound
	}

	if err := s.refreshLastMessage(tx, msg.ConversationID); err != nil {
		return false, apperrors.InternalError(err)
	}

	if !wasRead {
		if err := s.conversations.DecrementUnread(tx, msg.ConversationID, recipient.UserID); err != nil {
			return false, apperrors.InternalError(err)
		}
	}

	events, err := s.conversationEvents(ctx, tx, msg.ConversationID, userID, recipient.UserID)
	if err != nil {
		return false, err
	}
	total, err := s.conversations.SumUnread(tx, recipient.UserID)
	if err != nil {
		return false, apperrors.InternalError(err)
	}
	events = append(events, realtime.NewEvent(realtime.EventUnreadCountUpdate, recipient.UserID, realtime.UnreadCountData{Total: total}))

	if err := s.outbox.Commit(tx, events...); err != nil {
		return false, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "message deleted", "conversation_id", msg.ConversationID, "message_id", msg.ID, "was_read", wasRead)
	return true, nil
}

// refreshLastMessage ставит снимок по самому новому оставшемуся сообщению или очищает его
func (s *messagingService) refreshLastMessage(tx *gorm.DB, conversationID string) error {
	latest, err := s.messages.FindLatest(tx, conversationID)
	if err != nil {
		return err
	}
	if latest == nil {
		return s.conversations.UpdateLastMessage(tx, conversationID, nil, nil)
	}
	preview := modelChat.PreviewText(latest.Body, latest.Kind)
	at := latest.CreatedAt
	return s.conversations.UpdateLastMessage(tx, conversationID, &preview, &at)
}

// =======================
// Прочтение
// =======================

// MarkRead отмечает прочитанными все сообщения собеседника и пересчитывает счетчик читателя (ноль)
func (s *messagingService) MarkRead(ctx context.Context, db *gorm.DB, conversationID, readerID string) (*dto.MarkReadResponse, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	other, err := s.requireParticipant(tx, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	// Параллельная отправка читателю ждет коммита, иначе ее +1 затрется
	if _, err := s.conversations.LockParticipant(tx, conversationID, readerID); err != nil {
		return nil, handleChatError(err)
	}

	marked, err := s.receipts.MarkRead(tx, conversationID, readerID, other.UserID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if err := s.conversations.RecountUnread(tx, conversationID, readerID); err != nil {
		return nil, handleChatError(err)
	}

	events := []realtime.Event{
		realtime.NewEvent(realtime.EventMessageRead, other.UserID, realtime.MessageReadData{
			ConversationID: conversationID,
			ReaderID:       readerID,
			Count:          marked,
			ReadAt:         time.Now().UTC(),
		}),
	}
	updated, err := s.conversationEvents(ctx, tx, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	events = append(events, updated...)

	total, err := s.conversations.SumUnread(tx, readerID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	events = append(events, realtime.NewEvent(realtime.EventUnreadCountUpdate, readerID, realtime.UnreadCountData{Total: total}))

	if err := s.outbox.Commit(tx, events...); err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.MarkReadResponse{
		ConversationID: conversationID,
		SenderID:       other.UserID,
		Marked:         marked,
	}, nil
}

func (s *messagingService) GetUnreadTotal(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	total, err := s.receipts.GetUnreadTotal(db.WithContext(ctx), userID)
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return total, nil
}

// =======================
// Хелперы
// =======================

// requireParticipant проверяет участие и возвращает собеседника.
// Чужой диалог для клиента выглядит как несуществующий.
func (s *messagingService) requireParticipant(db *gorm.DB, conversationID, userID string) (*modelChat.ConversationParticipant, error) {
	if _, err := s.conversations.FindParticipant(db, conversationID, userID); err != nil {
		return nil, handleChatError(err)
	}
	other, err := s.conversations.FindOtherParticipant(db, conversationID, userID)
	if err != nil {
		return nil, handleChatError(err)
	}
	return other, nil
}

// displayNames - текущие имена для снимков; неизвестный пользователь получает пустое имя
func (s *messagingService) displayNames(db *gorm.DB, ids ...string) (map[string]string, error) {
	users, err := s.users.FindByIDs(db, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = users[id].Name
	}
	return names, nil
}

// conversationEvents - conversation-updated со свежей сводкой для каждого из userIDs
func (s *messagingService) conversationEvents(ctx context.Context, tx *gorm.DB, conversationID string, userIDs ...string) ([]realtime.Event, error) {
	rows := make([]*repoChat.ConversationRow, 0, len(userIDs))
	otherIDs := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		row, err := s.conversations.FindSummary(tx, conversationID, id)
		if err != nil {
			return nil, handleChatError(err)
		}
		rows = append(rows, row)
		otherIDs = append(otherIDs, row.OtherUserID)
	}

	users, err := s.users.FindByIDs(tx, otherIDs)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	events := make([]realtime.Event, 0, len(rows))
	for i, row := range rows {
		events = append(events, realtime.NewEvent(realtime.EventConversationUpdated, userIDs[i], s.toConversationResponse(ctx, row, users)))
	}
	return events, nil
}

func (s *messagingService) toConversationResponse(ctx context.Context, row *repoChat.ConversationRow, users map[string]models.User) *dto.ConversationResponse {
	resp := &dto.ConversationResponse{
		ID:            row.ConversationID,
		OtherUserID:   row.OtherUserID,
		OtherUserName: row.OtherName,
		UnreadCount:   row.UnreadCount,
		LastMessage:   row.LastMessage,
		LastMessageAt: row.LastMessageAt,
		CreatedAt:     row.CreatedAt,
	}
	if user, ok := users[row.OtherUserID]; ok && user.AvatarKey != nil {
		resp.OtherUserAvatarURL = s.resolveURL(ctx, *user.AvatarKey)
	}
	return resp
}

func (s *messagingService) toMessageResponse(ctx context.Context, msg *modelChat.Message, isRead, readByRecipient bool) *dto.MessageResponse {
	resp := &dto.MessageResponse{
		ID:              msg.ID,
		ConversationID:  msg.ConversationID,
		SenderID:        msg.SenderID,
		SenderName:      msg.SenderName,
		Body:            msg.Body,
		MediaKey:        msg.MediaKey,
		Kind:            string(msg.Kind),
		Payload:         msg.Payload,
		CreatedAt:       msg.CreatedAt,
		IsRead:          isRead,
		ReadByRecipient: readByRecipient,
	}
	if msg.MediaKey != nil {
		resp.MediaURL = s.resolveURL(ctx, *msg.MediaKey)
	}
	return resp
}

// resolveURL - ошибка резолвера не ломает ответ, поле просто остается null
func (s *messagingService) resolveURL(ctx context.Context, key string) *string {
	if s.media == nil || key == "" {
		return nil
	}
	url, err := s.media.ResolveURL(ctx, key)
	if err != nil {
		logger.CtxWarn(ctx, "media url resolve failed", "key", key, "error", err.Error())
		return nil
	}
	return &url
}

func handleChatError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, repoChat.ErrConversationNotFound) ||
		errors.Is(err, repoChat.ErrParticipantNotFound) {
		return apperrors.ErrConversationNotFound.WithError(err)
	}
	if errors.Is(err, repoChat.ErrMessageNotFound) {
		return apperrors.ErrMessageNotFound.WithError(err)
	}
	return apperrors.InternalError(err)
}
