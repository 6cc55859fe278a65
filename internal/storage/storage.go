package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mwork_messaging/internal/config"
)

var ErrEmptyKey = errors.New("storage: empty object key")

// Resolver превращает ключ объекта (медиа сообщения, аватар) в URL для клиента.
// Загрузка файлов принадлежит другому сервису.
type Resolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// Config holds storage configuration
type Config struct {
	Type      string // local, s3, cloudflare_r2
	BaseURL   string // Public URL base
	Bucket    string // For S3/R2
	Region    string // For S3
	AccessKey string // For S3/R2
	SecretKey string // For S3/R2
	Endpoint  string // For R2 or custom S3
	URLExpiry time.Duration
}

// ConfigFrom переносит секцию storage из конфигурации приложения
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Type:      cfg.Storage.Type,
		BaseURL:   cfg.Storage.BaseURL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
		URLExpiry: cfg.URLExpiry(),
	}
}

// NewResolver creates a resolver based on configuration
func NewResolver(cfg Config) (Resolver, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalResolver(cfg), nil
	case "s3":
		return NewS3Resolver(cfg)
	case "cloudflare_r2":
		return NewCloudflareR2Resolver(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// passthrough - ключ уже является абсолютным URL (например, внешний GIF)
func passthrough(key string) bool {
	return strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://")
}
