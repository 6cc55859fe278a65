package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	requestIDKey      contextKey = "request_id"
	userIDKey         contextKey = "user_id"
	conversationIDKey contextKey = "conversation_id"
)

// WithRequestID добавляет request ID в context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithUserID добавляет user ID в context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithConversationID добавляет conversation ID в context
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationIDKey, conversationID)
}

// GetRequestID извлекает request ID из context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID извлекает user ID из context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetConversationID извлекает conversation ID из context
func GetConversationID(ctx context.Context) string {
	if conversationID, ok := ctx.Value(conversationIDKey).(string); ok {
		return conversationID
	}
	return ""
}

// FromContext создает логгер с полями из context.
// Добавляет request_id, user_id и conversation_id, если они есть.
func FromContext(ctx context.Context) *slog.Logger {
	l := GetLogger()
	if ctx == nil {
		return l
	}

	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if userID := GetUserID(ctx); userID != "" {
		fields = append(fields, "user_id", userID)
	}
	if conversationID := GetConversationID(ctx); conversationID != "" {
		fields = append(fields, "conversation_id", conversationID)
	}

	if len(fields) > 0 {
		l = l.With(fields...)
	}
	return l
}

// CtxDebug логирует debug с контекстом
func CtxDebug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

// CtxInfo логирует info с контекстом
func CtxInfo(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

// CtxWarn логирует warning с контекстом
func CtxWarn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

// CtxError логирует error с контекстом
func CtxError(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Error(msg, args...)
}

// CtxWithError логирует error вместе с объектом ошибки
func CtxWithError(ctx context.Context, msg string, err error, args ...any) {
	fields := append([]any{"error", errString(err)}, args...)
	FromContext(ctx).Error(msg, fields...)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
