package middleware

import (
	"strings"

	"mwork_messaging/internal/auth"
	"mwork_messaging/internal/logger"
	"mwork_messaging/pkg/apperrors"
	"mwork_messaging/pkg/contextkeys"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware - проверка JWT из заголовка Authorization: Bearer <token>
func AuthMiddleware(tokens *auth.TokenService) gin.HandlerFunc {
	return authenticate(tokens, false)
}

// WSAuthMiddleware - то же для websocket: браузер не умеет ставить заголовки
// на upgrade, поэтому токен допускается в ?token=.
func WSAuthMiddleware(tokens *auth.TokenService) gin.HandlerFunc {
	return authenticate(tokens, true)
}

func authenticate(tokens *auth.TokenService, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" && allowQuery {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		claims, err := tokens.ParseToken(tokenStr)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "rejected token", "error", err.Error(), "path", c.Request.URL.Path)
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Invalid token"))
			return
		}

		userID := claims.Identity()
		c.Set(contextkeys.UserIDKey, userID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// GetUserID извлекает ID пользователя из контекста
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get(contextkeys.UserIDKey)
	if !exists {
		return ""
	}

	id, ok := userID.(string)
	if !ok {
		return ""
	}

	return id
}
