package apperrors

import (
	"mwork_messaging/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrorResponse - стандартный ответ об ошибке
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// GinErrorHandler - обработчик ошибок для Gin
type GinErrorHandler struct {
	Debug bool
}

// HandleGinError - основная логика обработки ошибок для Gin
func (h *GinErrorHandler) HandleGinError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}
	if appErr.HTTPCode >= 500 && !h.Debug {
		// В продакшене скрываем детали
		cp := *appErr
		cp.Message = "Internal server error"
		cp.Details = nil
		appErr = &cp
	}

	if appErr.HTTPCode >= 500 {
		logger.CtxError(c.Request.Context(), "server error", "error", err.Error(), "path", c.Request.URL.Path)
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{Error: appErr})
}

// debugErrors включается из конфигурации в app.SetupRouter.
var debugErrors = false

// SetDebug переключает вывод деталей внутренних ошибок.
func SetDebug(debug bool) {
	debugErrors = debug
}

// HandleError - быстрая функция-помощник для Gin
func HandleError(c *gin.Context, err error) {
	handler := &GinErrorHandler{Debug: debugErrors}
	handler.HandleGinError(c, err)
}

// HandleValidationError - специальный обработчик для ошибок валидации Gin
func HandleValidationError(c *gin.Context, err error) {
	HandleError(c, ValidationError(gin.H{"details": err.Error()}))
}
