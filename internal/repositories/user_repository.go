package repositories

import (
	"errors"

	"mwork_messaging/internal/models"

	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository - чтение профилей для имен и аватаров собеседников.
// Таблица users ведется другим сервисом.
type UserRepository interface {
	FindByID(db *gorm.DB, id string) (*models.User, error)
	FindByIDs(db *gorm.DB, ids []string) (map[string]models.User, error)
}

type UserRepositoryImpl struct{}

func NewUserRepository() UserRepository {
	return &UserRepositoryImpl{}
}

func (r *UserRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	res := db.Select("id", "name", "avatar_key").Where("id = ?", id).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// FindByIDs возвращает найденных пользователей по id; отсутствующие просто не попадают в карту
func (r *UserRepositoryImpl) FindByIDs(db *gorm.DB, ids []string) (map[string]models.User, error) {
	result := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []models.User
	if err := db.Select("id", "name", "avatar_key").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}
