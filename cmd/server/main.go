package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/railbook/service-booking/internal/adapter"
	"github.com/railbook/service-booking/internal/application"
	"github.com/railbook/service-booking/internal/config"
	"github.com/railbook/service-booking/internal/events"
	"github.com/railbook/service-booking/internal/handler"
	"github.com/railbook/service-booking/internal/lock"
	"github.com/railbook/service-booking/internal/notify"
	"github.com/railbook/service-booking/internal/platform/auth"
	"github.com/railbook/service-booking/internal/platform/database"
	"github.com/railbook/service-booking/internal/platform/kafka"
	"github.com/railbook/service-booking/internal/platform/logger"
	"github.com/railbook/service-booking/internal/platform/middleware"
	"github.com/railbook/service-booking/internal/repository"
	"github.com/railbook/service-booking/internal/saga"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("lock_backend", cfg.LockConfig.Backend),
		zap.String("notifier", cfg.Notifier),
	)

	// Connect to database and migrate
	db, err := database.Connect(cfg.DBConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := repository.Migrate(db); err != nil {
		zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
	}
	zapLogger.Info("database migration completed")

	verifier := auth.NewVerifier(cfg.JWTConfig.Secret)

	// Kafka producer and event publisher
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()
	publisher := events.NewPublisher(kafkaProducer, zapLogger)

	// Notifier
	var notifier notify.Notifier
	switch cfg.Notifier {
	case config.NotifierKafka:
		notifier = notify.NewKafkaNotifier(publisher)
	case config.NotifierRabbitMQ:
		rabbit := notify.NewRabbitNotifier(cfg.RabbitMQConfig.URL, cfg.RabbitMQConfig.Queue, zapLogger)
		defer rabbit.Close()
		notifier = rabbit
	default:
		notifier = notify.NewLogNotifier(zapLogger)
	}

	// Per-booking lock
	var locker lock.Locker
	if cfg.LockConfig.Backend == config.LockRedis {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer redisClient.Close()
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		pingCancel()
		locker = lock.NewRedisLocker(redisClient, cfg.LockConfig.TTL, cfg.LockConfig.Retry, zapLogger)
	} else {
		locker = lock.NewLocalLocker()
	}

	// Repositories
	bookingRepo := repository.NewBookingRepository(db)
	scheduleRepo := repository.NewGormScheduleRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	discountRepo := repository.NewGormDiscountRepository(db)
	loyaltyRepo := repository.NewGormLoyaltyRepository(db)
	policyRepo := repository.NewGormPolicyRepository(db)

	// Application services
	loyaltyService := application.NewLoyaltyService(loyaltyRepo, cfg.LoyaltyRates, zapLogger)
	discountService := application.NewDiscountService(discountRepo, nil, zapLogger)
	policyService := application.NewPolicyService(policyRepo, cfg.DefaultPolicy, zapLogger)
	paymentService := application.NewPaymentService(paymentRepo, zapLogger)

	// Payment adapters (simulated gateway)
	gateway := adapter.NewMockGateway(zapLogger, cfg.DeclinedCards...)
	adapters := adapter.NewRegistry(
		adapter.NewCardAdapter(gateway, nil, zapLogger),
		adapter.NewCashAdapter(zapLogger),
		adapter.NewBankTransferAdapter(gateway, zapLogger),
		adapter.NewMobileWalletAdapter(cfg.WalletPINLength, zapLogger),
		adapter.NewLoyaltyWalletAdapter(loyaltyService, cfg.LoyaltyRates, zapLogger),
	)

	sagaService := saga.NewPaymentSagaService(discountService, paymentRepo, bookingRepo, loyaltyService, zapLogger)
	orchestrator := application.NewPaymentOrchestrator(bookingRepo, discountService, adapters, sagaService,
		locker, cfg.LockConfig.Timeout, publisher, notifier, zapLogger)
	bookingService := application.NewBookingService(bookingRepo, scheduleRepo, paymentRepo, policyService,
		adapters, locker, cfg.LockConfig.Timeout, publisher, notifier, cfg.TimeZone, nil, zapLogger)

	// Schedule change consumer
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	if cfg.ScheduleConsumerEnabled {
		scheduleConsumer := events.NewScheduleEventConsumer(
			cfg.KafkaConfig.Brokers,
			cfg.KafkaConfig.GroupPrefix+serviceName,
			bookingService,
			zapLogger,
		)
		defer scheduleConsumer.Close()

		go func() {
			zapLogger.Info("starting schedule event consumer")
			if err := scheduleConsumer.Start(consumerCtx); err != nil {
				if consumerCtx.Err() == nil {
					zapLogger.Error("schedule event consumer failed", zap.Error(err))
				}
			}
		}()
	}

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes

	handler.NewHealthHandler(db, serviceName).RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	handler.NewBookingHandler(bookingService, orchestrator).RegisterRoutes(apiV1, verifier)
	handler.NewPaymentHandler(paymentService).RegisterRoutes(apiV1, verifier)
	handler.NewDiscountHandler(discountService).RegisterRoutes(apiV1, verifier)
	handler.NewLoyaltyHandler(loyaltyService).RegisterRoutes(apiV1, verifier)
	handler.NewAdminHandler(paymentService, discountService, policyService).RegisterRoutes(apiV1, verifier)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down " + serviceName + "...")

	consumerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info(serviceName + " stopped")
}
