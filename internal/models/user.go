package models

// User - профиль пользователя. Таблица принадлежит сервису профилей,
// здесь читаются только имя и ключ аватара.
type User struct {
	BaseModel
	Name      string  `gorm:"size:255;not null"`
	AvatarKey *string `gorm:"size:512"`
}

func (User) TableName() string {
	return "users"
}
