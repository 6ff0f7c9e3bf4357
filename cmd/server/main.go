package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/homeconnect/internal/app"
	"github.com/Freeeeeet/homeconnect/internal/config"
	"github.com/Freeeeeet/homeconnect/internal/controller"
	"github.com/Freeeeeet/homeconnect/internal/controller/handlers"
	"github.com/Freeeeeet/homeconnect/internal/metrics"
	"github.com/Freeeeeet/homeconnect/internal/notify"
	"github.com/Freeeeeet/homeconnect/internal/repository"
	"github.com/Freeeeeet/homeconnect/internal/repository/base"
	"github.com/Freeeeeet/homeconnect/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting homeconnect",
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("availability_policy", string(cfg.AvailabilityPolicy)),
		zap.String("timezone", cfg.Timezone.String()))

	// Подключаемся к базе с повторами, пока контейнер БД поднимается
	pool, err := app.ConnectDB(ctx, cfg.DBDSN, cfg.DBConnectAttempts, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	// Репозитории
	txManager := base.NewTxManager(pool)
	userRepo := repository.NewUserRepository(pool)
	locationRepo := repository.NewLocationRepository(pool)
	providerRepo := repository.NewProviderRepository(pool)
	slotRepo := repository.NewSlotRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	reviewRepo := repository.NewReviewRepository(pool)

	// Уведомления
	var notifier service.Notifier = notify.Nop{}
	if cfg.NotificationsEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, cfg.Timezone, logger)
		if err != nil {
			return err
		}
		notifier = tg
		logger.Info("Telegram notifications enabled", zap.Int64("chat_id", cfg.TelegramChatID))
	}

	m := metrics.New()
	readRetry := service.ReadRetry{MaxRetries: cfg.QueryRetries, Base: service.DefaultReadRetry.Base}

	// Сервисы
	authService := service.NewAuthService(txManager, userRepo, providerRepo, locationRepo, service.AuthConfig{
		Secret:   []byte(cfg.JWTSecret),
		TokenTTL: cfg.TokenTTL,
	}, logger)
	availabilityService := service.NewAvailabilityService(txManager, providerRepo, slotRepo, bookingRepo, m, readRetry, logger)
	bookingService := service.NewBookingService(txManager, providerRepo, slotRepo, bookingRepo, availabilityService, notifier, m, readRetry, logger)
	matchingService := service.NewMatchingService(providerRepo, slotRepo, locationRepo, reviewRepo, cfg.AvailabilityPolicy, cfg.Timezone, readRetry, logger)
	providerService := service.NewProviderService(txManager, userRepo, providerRepo, locationRepo, reviewRepo, readRetry, logger)
	reviewService := service.NewReviewService(txManager, bookingRepo, reviewRepo, providerRepo, logger)

	// HTTP
	h := handlers.NewHandlers(
		authService,
		availabilityService,
		bookingService,
		matchingService,
		providerService,
		reviewService,
		pool,
		cfg.Timezone,
		logger,
	)
	router := controller.NewRouter(h, m, controller.RouterConfig{
		LoginRateLimit:  cfg.LoginRateLimit,
		LoginRateWindow: time.Minute,
		RequestTimeout:  30 * time.Second,
	}, logger)

	return controller.NewServer(cfg.HTTPAddr, router, logger).Start(ctx)
}
