package apperrors

import "net/http"

/*
Предопределенные ошибки домена личных сообщений.
*/

// ErrNotConnected - отправка или создание диалога без принятой связи между пользователями.
var ErrNotConnected = New(
	CodePermissionDenied,
	DomainChat,
	"messaging requires an accepted connection",
	http.StatusForbidden,
)

// ErrNotMessageOwner - удалять сообщение может только его автор.
var ErrNotMessageOwner = New(
	CodePermissionDenied,
	DomainChat,
	"only the author can delete this message",
	http.StatusForbidden,
)

// ErrConversationNotFound - диалога нет или пользователь в нем не участвует.
// Оба случая намеренно неразличимы для клиента.
var ErrConversationNotFound = New(
	CodeNotFound,
	DomainChat,
	"Conversation not found",
	http.StatusNotFound,
)

// ErrMessageNotFound - сообщение не найдено.
var ErrMessageNotFound = New(
	CodeNotFound,
	DomainChat,
	"Message not found",
	http.StatusNotFound,
)

// ErrRecipientRequired - не указан получатель.
var ErrRecipientRequired = New(
	CodeValidationFailed,
	DomainValidation,
	"recipient is required",
	http.StatusBadRequest,
)

// ErrCannotMessageSelf - получатель совпадает с отправителем.
var ErrCannotMessageSelf = New(
	CodeValidationFailed,
	DomainValidation,
	"cannot start a conversation with yourself",
	http.StatusBadRequest,
)

// ErrEmptyMessage - нет ни текста, ни медиа, ни вложения.
var ErrEmptyMessage = New(
	CodeValidationFailed,
	DomainValidation,
	"message must contain a body, media or payload",
	http.StatusBadRequest,
)

// ErrInvalidMessageKind - неизвестный тип сообщения.
var ErrInvalidMessageKind = New(
	CodeValidationFailed,
	DomainValidation,
	"invalid message kind",
	http.StatusBadRequest,
)
