package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"mwork_messaging/internal/config"
	"mwork_messaging/internal/models"
	chatmodels "mwork_messaging/internal/models/chat"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect открывает пул соединений по настройкам database.*
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	level := gormlogger.Warn
	if cfg.Server.Env == "development" {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if cfg.Database.Driver == "sqlite" {
		// sqlite пишет одним соединением
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// NewGormLogger - логгер gorm без шума о record not found
func NewGormLogger(level gormlogger.LogLevel) gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// Models - все таблицы, которыми владеет подсистема сообщений,
// плюс внешние users и connections для локального режима и тестов.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Connection{},
		&chatmodels.Conversation{},
		&chatmodels.ConversationParticipant{},
		&chatmodels.Message{},
		&chatmodels.MessageReadReceipt{},
	}
}

// AutoMigrate создает или дополняет таблицы
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// Close закрывает пул соединений
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
