package testutil

import (
	"testing"
	"time"

	"mwork_messaging/database"
	"mwork_messaging/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB открывает отдельную in-memory sqlite базу со всеми таблицами.
// Одно соединение: код внутри транзакции не должен ходить в пул.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := OpenTestDB(t)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// OpenTestDB - пустая база без миграций
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: database.NewGormLogger(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser добавляет пользователя с заданным именем
func CreateUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{Name: name}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Connect создает принятую связь между пользователями
func Connect(t *testing.T, db *gorm.DB, requesterID, addresseeID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Connection{
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      models.ConnectionStatusAccepted,
	}).Error)
}

// Relate создает связь с произвольным статусом
func Relate(t *testing.T, db *gorm.DB, requesterID, addresseeID string, status models.ConnectionStatus) {
	t.Helper()
	require.NoError(t, db.Create(&models.Connection{
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      status,
	}).Error)
}
