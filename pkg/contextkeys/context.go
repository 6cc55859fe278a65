package contextkeys

// Используем кастомный тип, чтобы избежать коллизий
type contextKey string

// DBContextKey - ключ, по которому в gin.Context лежит *gorm.DB текущего запроса
const DBContextKey = contextKey("db")

// UserIDKey - ключ идентификатора аутентифицированного пользователя в gin.Context
const UserIDKey = "userID"
