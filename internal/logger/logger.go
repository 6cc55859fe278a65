package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	log  *slog.Logger
	mu   sync.RWMutex
	once sync.Once
)

// Init инициализирует глобальный логгер.
// env: "development" дает текстовый вывод с уровнем debug, иначе JSON.
func Init(env string) {
	InitWithWriter(env, os.Stdout)
}

// InitWithWriter - то же, что Init, но с произвольным io.Writer (нужно тестам).
func InitWithWriter(env string, w io.Writer) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: env == "development",
	}

	if env == "development" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)

	mu.Lock()
	log = l
	mu.Unlock()

	slog.SetDefault(l)
}

// GetLogger возвращает глобальный логгер
func GetLogger() *slog.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l != nil {
		return l
	}
	// Fallback если Init не вызван
	once.Do(func() { Init("development") })
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug логирует debug сообщение
func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, args...)
}

// Info логирует info сообщение
func Info(msg string, args ...any) {
	GetLogger().Info(msg, args...)
}

// Warn логирует warning сообщение
func Warn(msg string, args ...any) {
	GetLogger().Warn(msg, args...)
}

// Error логирует error сообщение
func Error(msg string, args ...any) {
	GetLogger().Error(msg, args...)
}

// Fatal логирует ошибку и завершает процесс
func Fatal(msg string, args ...any) {
	GetLogger().Error(msg, args...)
	os.Exit(1)
}

// With создает логгер с дополнительными полями.
// Пример: logger.With("component", "publisher").Info("started")
func With(args ...any) *slog.Logger {
	return GetLogger().With(args...)
}

// Component - логгер фонового компонента (publisher, broker, hub)
func Component(name string) *slog.Logger {
	return GetLogger().With("component", name)
}
