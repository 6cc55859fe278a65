package validator

import (
	"fmt"

	"mwork_messaging/internal/models/chat"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules регистрирует кастомные правила валидации.
func registerCustomRules(v *validator.Validate) error {
	rules := map[string]validator.Func{
		// Пустое значение допустимо: тип выводится сервисом
		"message_kind": func(fl validator.FieldLevel) bool {
			kind := fl.Field().String()
			return kind == "" || chat.MessageKind(kind).Valid()
		},
	}

	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("tag '%s': %w", tag, err)
		}
	}
	return nil
}
