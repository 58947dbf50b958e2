package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/civicpulse/incident_reporting_system/internal/classifier"
	"github.com/civicpulse/incident_reporting_system/internal/config"
	"github.com/civicpulse/incident_reporting_system/internal/events"
	v1 "github.com/civicpulse/incident_reporting_system/internal/handler/http/v1"
	"github.com/civicpulse/incident_reporting_system/internal/realtime"
	"github.com/civicpulse/incident_reporting_system/internal/repository"
	"github.com/civicpulse/incident_reporting_system/internal/service"
	"github.com/civicpulse/incident_reporting_system/pkg/logger"
	"github.com/civicpulse/incident_reporting_system/pkg/mongodb"
	redisclient "github.com/civicpulse/incident_reporting_system/pkg/redis"

	_ "github.com/civicpulse/incident_reporting_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Incident Reporting System API
// @version 1.0
// @description Municipal incident-reporting backend: citizen reports, AI classification, live dashboards.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подключение к MongoDB
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	mongoClient, err := mongodb.NewMongoClient(connectCtx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.WithError(err).Error("Failed to disconnect MongoDB")
		}
	}()
	log.Info("Successfully connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDBName)
	if err := mongodb.EnsureIndexes(connectCtx, db); err != nil {
		log.Fatalf("Failed to ensure MongoDB indexes: %v", err)
	}

	// Инициализация Redis клиента
	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Идентификатор процесса: метит события, чтобы не рассылать свои дважды
	instanceID := uuid.NewString()
	consumer := cfg.EventConsumer
	if consumer == "" {
		consumer = instanceID
	}

	// Живая рассылка подключенным дашбордам
	hub := realtime.NewHub(log)

	// Канал событий: издатель и фоновый подписчик
	publisher := events.NewRedisStreamPublisher(redisClient, cfg.EventStream, instanceID)
	subscriber := events.NewSubscriber(redisClient, hub, log, cfg.EventStream, cfg.EventGroup, consumer, instanceID)
	if err := subscriber.Start(ctx); err != nil {
		log.Fatalf("Failed to start event channel subscriber: %v", err)
	}

	// Клиент внешней классификации
	classifierClient := classifier.NewClient(cfg, log)

	// Инициализация репозиториев
	incidentRepo := repository.NewIncidentRepository(db, redisClient)
	userRepo := repository.NewUserRepository(db)

	// Инициализация сервисов
	incidentService := service.NewIncidentService(incidentRepo, classifierClient, publisher, hub, log)
	userService := service.NewUserService(userRepo, log, cfg)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, userService, hub, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Загруженные файлы (медиа обращений и подтверждения решений)
	router.Static("/static/uploads", cfg.UploadDir)

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

	// Останавливаем подписчика канала событий
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
