package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: sqlite
  url: "file::memory:"
jwt:
  secret: s3cret
realtime:
  broker: redis
  redis_url: redis://localhost:6379/0
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	cfg.applyDefaults()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Realtime.Broker)
	assert.Equal(t, 1024, cfg.Realtime.QueueSize)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Push.RedisURL, "push falls back to realtime redis")
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, time.Hour, cfg.URLExpiry())
	assert.Equal(t, ":9090", cfg.Addr())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("REALTIME_BROKER", "nats")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("PUSH_ENABLED", "true")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)
	cfg.applyDefaults()

	assert.Equal(t, "postgres://localhost/test", cfg.Database.DSN)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "nats", cfg.Realtime.Broker)
	assert.True(t, cfg.Push.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestFromEnv_RequiresSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "")

	_, err := FromEnv()
	assert.Error(t, err)
}
