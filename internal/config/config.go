package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host                  string `yaml:"host"`
		Port                  int    `yaml:"port"`
		Env                   string `yaml:"env"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		Driver       string `yaml:"driver"` // postgres, sqlite
		DSN          string `yaml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
		AutoMigrate  bool   `yaml:"auto_migrate"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
	} `yaml:"jwt"`

	Storage struct {
		Type             string `yaml:"type"`     // local, s3, cloudflare_r2
		BaseURL          string `yaml:"base_url"` // Public URL base
		Bucket           string `yaml:"bucket"`
		Region           string `yaml:"region"`
		AccessKey        string `yaml:"access_key"`
		SecretKey        string `yaml:"secret_key"`
		Endpoint         string `yaml:"endpoint"` // R2 или свой S3
		URLExpiryMinutes int    `yaml:"url_expiry_minutes"`
	} `yaml:"storage"`

	Realtime struct {
		Broker    string `yaml:"broker"` // local, redis, nats
		QueueSize int    `yaml:"queue_size"`
		RedisURL  string `yaml:"redis_url"`
		NATSURL   string `yaml:"nats_url"`
	} `yaml:"realtime"`

	Push struct {
		Enabled  bool   `yaml:"enabled"`
		RedisURL string `yaml:"redis_url"`
		Queue    string `yaml:"queue"`
	} `yaml:"push"`

	CORS struct {
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"cors"`
}

var AppConfig *Config

// LoadConfig читает конфигурацию. Если задан DATABASE_URL, конфигурация
// собирается из переменных окружения, иначе из YAML по CONFIG_PATH.
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Load - вариант LoadConfig, возвращающий ошибку вместо завершения процесса.
func Load() (*Config, error) {
	if os.Getenv("SERVER_ENV") != "production" {
		// .env необязателен
		_ = godotenv.Load()
	}

	var cfg *Config
	var err error
	if os.Getenv("DATABASE_URL") == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}
		cfg, err = LoadFile(configPath)
	} else {
		cfg, err = FromEnv()
	}
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile декодирует YAML-файл конфигурации.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file at %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file at %s: %w", path, err)
	}
	return &cfg, nil
}

// FromEnv собирает конфигурацию из переменных окружения.
func FromEnv() (*Config, error) {
	var cfg Config

	cfg.Server.Host = os.Getenv("SERVER_HOST")
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port = envInt("SERVER_PORT", 0)
	cfg.Server.RequestTimeoutSeconds = envInt("REQUEST_TIMEOUT_SECONDS", 0)

	cfg.Database.Driver = os.Getenv("DATABASE_DRIVER")
	cfg.Database.DSN = os.Getenv("DATABASE_URL")
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", 0)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", 0)
	cfg.Database.AutoMigrate = envBool("DATABASE_AUTO_MIGRATE", false)

	cfg.JWT.Secret = os.Getenv("JWT_SECRET")

	cfg.Storage.Type = os.Getenv("STORAGE_TYPE")
	cfg.Storage.BaseURL = os.Getenv("STORAGE_BASE_URL")
	cfg.Storage.Bucket = os.Getenv("STORAGE_BUCKET")
	cfg.Storage.Region = os.Getenv("STORAGE_REGION")
	cfg.Storage.AccessKey = os.Getenv("STORAGE_ACCESS_KEY")
	cfg.Storage.SecretKey = os.Getenv("STORAGE_SECRET_KEY")
	cfg.Storage.Endpoint = os.Getenv("STORAGE_ENDPOINT")
	cfg.Storage.URLExpiryMinutes = envInt("STORAGE_URL_EXPIRY_MINUTES", 0)

	cfg.Realtime.Broker = os.Getenv("REALTIME_BROKER")
	cfg.Realtime.QueueSize = envInt("REALTIME_QUEUE_SIZE", 0)
	cfg.Realtime.RedisURL = os.Getenv("REDIS_URL")
	cfg.Realtime.NATSURL = os.Getenv("NATS_URL")

	cfg.Push.Enabled = envBool("PUSH_ENABLED", false)
	cfg.Push.RedisURL = os.Getenv("PUSH_REDIS_URL")
	cfg.Push.Queue = os.Getenv("PUSH_QUEUE")

	if origins := os.Getenv("CORS_ALLOW_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowOrigins = append(cfg.CORS.AllowOrigins, o)
			}
		}
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		c.Server.RequestTimeoutSeconds = 15
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.URLExpiryMinutes <= 0 {
		c.Storage.URLExpiryMinutes = 60
	}
	if c.Realtime.Broker == "" {
		c.Realtime.Broker = "local"
	}
	if c.Realtime.QueueSize <= 0 {
		c.Realtime.QueueSize = 1024
	}
	if c.Push.Queue == "" {
		c.Push.Queue = "default"
	}
	if c.Push.RedisURL == "" {
		c.Push.RedisURL = c.Realtime.RedisURL
	}
	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"*"}
	}
}

// Addr - адрес, на котором слушает HTTP-сервер
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RequestTimeout - дедлайн одного запроса
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// URLExpiry - срок жизни подписанной ссылки на медиа
func (c *Config) URLExpiry() time.Duration {
	return time.Duration(c.Storage.URLExpiryMinutes) * time.Minute
}

// IsProduction - true для server.env == "production"
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
