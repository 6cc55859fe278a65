package models

// Connection - связь между пользователями. Заявку отправляет RequesterID,
// принимает AddresseeID. Переписка разрешена только при статусе accepted.
type Connection struct {
	BaseModel
	RequesterID string           `gorm:"size:64;not null;index:idx_connections_pair,priority:1"`
	AddresseeID string           `gorm:"size:64;not null;index:idx_connections_pair,priority:2"`
	Status      ConnectionStatus `gorm:"type:varchar(20);not null;default:'pending'"`
}

func (Connection) TableName() string {
	return "connections"
}
