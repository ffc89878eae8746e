package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fitgrid-app/backend-chat/internal/di"
	"github.com/fitgrid-app/backend-chat/internal/events"
	"github.com/fitgrid-app/backend-chat/pkg/config"
	"github.com/fitgrid-app/backend-chat/pkg/database"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
	"github.com/fitgrid-app/backend-chat/pkg/middleware"
	"github.com/fitgrid-app/backend-chat/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	appLogger, err := logger.New(&logger.Config{
		Level:        logLevel,
		ServiceName:  cfg.App.Name,
		Development:  cfg.App.Environment == "development",
		OutputPath:   "stdout",
		OTLPEnabled:  cfg.OTel.Enabled,
		OTLPEndpoint: cfg.OTel.CollectorAddr,
		OTLPInsecure: true,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		appLogger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		appLogger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("failed to connect to redis", zap.Error(err))
	}

	container := di.NewContainer(&di.ContainerConfig{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
		Logger: appLogger,
	})

	auditLogger := middleware.NewAuditLogger(middleware.DefaultAuditConfig(db.Pool()))
	defer auditLogger.Close()

	router := buildRouter(cfg, container, auditLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	consumer, err := events.NewConsumer(&cfg.Kafka, container.RoomService, appLogger)
	if err != nil {
		appLogger.Fatal("failed to create event consumer", zap.Error(err))
	}
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("event consumer stopped", zap.Error(err))
		}
	}()

	go func() {
		appLogger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed", zap.Error(err))
	}
	consumer.Close()
	appLogger.Info("shutdown complete")
	os.Exit(0)
}

func buildRouter(cfg *config.Config, container *di.Container, auditLogger *middleware.AuditLogger) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	container.HealthHandler.RegisterRoutes(router)
	// The provider authenticates with a body signature, not a user token
	container.WebhookHandler.RegisterRoutes(router.Group(""))

	api := router.Group("/api/v1")
	api.Use(middleware.JWTMiddleware(&middleware.JWTConfig{Secret: cfg.JWT.Secret}))
	api.Use(middleware.AuditMiddleware(auditLogger))
	container.RoomHandler.RegisterRoutes(api)

	return router
}
