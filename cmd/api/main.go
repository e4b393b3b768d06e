package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/shenikar/traffic_incident_system/docs"
	"github.com/shenikar/traffic_incident_system/internal/config"
	v1 "github.com/shenikar/traffic_incident_system/internal/handler/http/v1"
	"github.com/shenikar/traffic_incident_system/internal/models"
	"github.com/shenikar/traffic_incident_system/internal/repository"
	"github.com/shenikar/traffic_incident_system/internal/service"
	"github.com/shenikar/traffic_incident_system/internal/webhook"
	"github.com/shenikar/traffic_incident_system/internal/websocket"
	"github.com/shenikar/traffic_incident_system/pkg/logger"
	"github.com/shenikar/traffic_incident_system/pkg/postgres"
	redisclient "github.com/shenikar/traffic_incident_system/pkg/redis"
)

// @title Traffic Incident System API
// @version 1.0
// @description Incident ingestion, verification lifecycle and alert dispatch for traffic camera detections.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
		migrationURL = strings.Replace(migrationURL, "postgresql://", "pgx5://", 1)
	}

	m, err := migrate.New(cfg.MigrationsPath, migrationURL)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Вебхуки шлюза push/sms/email
	webhookPublisher := webhook.NewRedisWebhookPublisher(redisClient)
	webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
	webhookWorker.Start(ctx)
	gatewayNotifier := webhook.NewNotifier(webhookPublisher)

	// in_app оповещения по websocket
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	// Инициализация репозиториев
	incidentRepo := repository.NewIncidentRepository(dbpool, redisClient, cfg.CacheTTL)
	alertRepo := repository.NewAlertRepository(dbpool)

	// Инициализация сервисов
	notifiers := map[models.Channel]service.Notifier{
		models.ChannelInApp: hub,
		models.ChannelPush:  gatewayNotifier,
		models.ChannelSMS:   gatewayNotifier,
		models.ChannelEmail: gatewayNotifier,
	}
	alertService := service.NewAlertService(alertRepo, notifiers, log, cfg)
	incidentService := service.NewIncidentService(incidentRepo, log, cfg, alertService)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, alertService, hub, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Сначала HTTP, затем фоновые воркеры
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	cancel()

	select {
	case <-webhookWorker.Done():
	case <-shutdownCtx.Done():
		log.Warn("Webhook worker did not stop in time")
	}

	log.Info("Server gracefully stopped")
}
