package repositories

import (
	"mwork_messaging/internal/models"

	"gorm.io/gorm"
)

// ConnectionRepository - граф связей пользователей (только чтение)
type ConnectionRepository interface {
	// IsConnected - есть ли принятая связь в любом направлении
	IsConnected(db *gorm.DB, userA, userB string) (bool, error)
}

type ConnectionRepositoryImpl struct{}

func NewConnectionRepository() ConnectionRepository {
	return &ConnectionRepositoryImpl{}
}

func (r *ConnectionRepositoryImpl) IsConnected(db *gorm.DB, userA, userB string) (bool, error) {
	var count int64
	err := db.Model(&models.Connection{}).
		Where("status = ?", models.ConnectionStatusAccepted).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
