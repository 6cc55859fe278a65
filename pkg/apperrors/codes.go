package apperrors

// ErrorCode - тип для кодов ошибок
type ErrorCode string

// Стабильные машиночитаемые коды. Клиенты ветвятся по ним, менять нельзя.
const (
	// Аутентификация и авторизация
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Валидация
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Ресурсы
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Системные ошибки
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// Домены ошибок (поле Domain в ответе)
const (
	DomainAuth       = "auth"
	DomainValidation = "validation"
	DomainChat       = "chat"
	DomainSystem     = "system"
)
