package chat

import (
	"context"

	"mwork_messaging/internal/logger"
	"mwork_messaging/internal/repositories"

	"gorm.io/gorm"
)

// ConnectionGate решает, могут ли двое пользователей переписываться
type ConnectionGate interface {
	IsConnected(ctx context.Context, userA, userB string) bool
}

type connectionGate struct {
	db    *gorm.DB
	conns repositories.ConnectionRepository
}

// NewConnectionGate - проверка по таблице connections. Граф связей ведет другой сервис.
func NewConnectionGate(db *gorm.DB, conns repositories.ConnectionRepository) ConnectionGate {
	return &connectionGate{db: db, conns: conns}
}

// IsConnected закрыт по умолчанию: пустой id, пара с самим собой
// или ошибка чтения дают false.
func (g *connectionGate) IsConnected(ctx context.Context, userA, userB string) bool {
	if userA == "" || userB == "" || userA == userB {
		return false
	}

	ok, err := g.conns.IsConnected(g.db.WithContext(ctx), userA, userB)
	if err != nil {
		logger.CtxWithError(ctx, "connection lookup failed", err, "user_a", userA, "user_b", userB)
		return false
	}
	return ok
}
