package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mwork_messaging/database"
	"mwork_messaging/internal/auth"
	"mwork_messaging/internal/config"
	"mwork_messaging/internal/handlers"
	"mwork_messaging/internal/logger"
	"mwork_messaging/internal/middleware"
	"mwork_messaging/internal/push"
	"mwork_messaging/internal/realtime"
	"mwork_messaging/internal/repositories"
	repoChat "mwork_messaging/internal/repositories/chat"
	"mwork_messaging/internal/routes"
	"mwork_messaging/internal/services/chat"
	"mwork_messaging/internal/storage"
	"mwork_messaging/internal/validator"
	"mwork_messaging/pkg/apperrors"
	"mwork_messaging/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	gormDB, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to GORM", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(gormDB); err != nil {
			logger.Fatal("Migration failed", "error", err)
		}
		logger.Info("Database migrated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := New(ctx, cfg, gormDB)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info(fmt.Sprintf("🚀 Server starting on %s", cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	application.Close()
	if err := database.Close(gormDB); err != nil {
		logger.Error("Database close error", "error", err)
	}
	logger.Info("Server stopped")
}

// App - собранное приложение: роутер и фоновые компоненты доставки событий
type App struct {
	Router    *gin.Engine
	Hub       *ws.Hub
	Outbox    *realtime.Outbox
	Messaging chat.MessagingService

	broker        realtime.Broker
	sink          push.Sink
	cancel        context.CancelFunc
	publisherDone chan struct{}
}

// New собирает зависимости и запускает hub, подписку брокера и publisher.
// Остановка через Close.
func New(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) (*App, error) {
	apperrors.SetDebug(!cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Схема messages определяется один раз
	caps := repoChat.DetectSchema(gormDB)
	logger.Info("Messages schema detected", "media", caps.Media, "kind", caps.Kind, "payload", caps.Payload)

	resolver, err := storage.NewResolver(storage.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	logger.Info("Storage initialized", "type", cfg.Storage.Type)

	broker, err := realtime.NewBroker(cfg)
	if err != nil {
		return nil, fmt.Errorf("realtime broker: %w", err)
	}
	logger.Info("Realtime broker initialized", "broker", cfg.Realtime.Broker)

	sink, err := push.NewSink(cfg)
	if err != nil {
		_ = broker.Close()
		return nil, fmt.Errorf("push sink: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	hub := ws.NewHub()
	go hub.Run(runCtx)

	if err := broker.Subscribe(runCtx, hub.Deliver); err != nil {
		cancel()
		_ = broker.Close()
		_ = sink.Close()
		return nil, fmt.Errorf("realtime subscribe: %w", err)
	}

	outbox := realtime.NewOutbox(cfg.Realtime.QueueSize)
	publisher := realtime.NewPublisher(outbox, broker, sink)
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		publisher.Run(runCtx)
	}()

	// --- Инициализация репозиториев ---
	conversationRepo := repoChat.NewConversationRepository()
	messageRepo := repoChat.NewMessageRepository(caps)
	receiptRepo := repoChat.NewReadReceiptRepository()
	userRepo := repositories.NewUserRepository()
	connectionRepo := repositories.NewConnectionRepository()

	// --- Инициализация сервисов ---
	gate := chat.NewConnectionGate(gormDB, connectionRepo)
	messaging := chat.NewMessagingService(conversationRepo, messageRepo, receiptRepo, userRepo, gate, resolver, outbox)

	// --- Хэндлеры и маршруты ---
	baseHandler := handlers.NewBaseHandler(validator.New())
	appHandlers := &handlers.AppHandlers{
		ChatHandler: handlers.NewChatHandler(baseHandler, messaging),
		WSHandler:   handlers.NewWSHandler(baseHandler, hub, cfg.CORS.AllowOrigins),
	}

	ginRouter := initializeGinRouter(cfg, gormDB)
	routes.RegisterRoutes(ginRouter, appHandlers, auth.NewTokenService(cfg.JWT.Secret), cfg.RequestTimeout())

	return &App{
		Router:        ginRouter,
		Hub:           hub,
		Outbox:        outbox,
		Messaging:     messaging,
		broker:        broker,
		sink:          sink,
		cancel:        cancel,
		publisherDone: publisherDone,
	}, nil
}

// Close дописывает очередь событий и останавливает фоновые компоненты
func (a *App) Close() {
	a.Outbox.Close()
	<-a.publisherDone
	a.cancel()

	if err := a.broker.Close(); err != nil {
		logger.Error("Broker close error", "error", err)
	}
	if err := a.sink.Close(); err != nil {
		logger.Error("Push sink close error", "error", err)
	}
}

func initializeGinRouter(cfg *config.Config, db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowOrigins))
	router.Use(middleware.DBMiddleware(db))
	return router
}
