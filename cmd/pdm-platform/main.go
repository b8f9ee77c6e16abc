package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/accelerator"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/config"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/consumer"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/database"
	httpapi "github.com/AdityaChandel11/predictive-pdm-platform/internal/http"
	applogger "github.com/AdityaChandel11/predictive-pdm-platform/internal/logger"
	mqttcommon "github.com/AdityaChandel11/predictive-pdm-platform/internal/mqtt"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/notifier"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/repository"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := applogger.NewLogger(cfg.Log.Level, cfg.Log.Format, "pdm-platform")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting pdm-platform service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("telemetry_topic", cfg.Telemetry.Topic),
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.Bool("accelerator", cfg.Accelerator.Enabled),
	)

	// 初始化存储：DB 不可用时回退到内存存储，查询 API 保持可用
	var db *sql.DB
	var telemetryRepo repository.TelemetryRepository
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			pgRepo := repository.NewPostgresTelemetryRepository(d, logger)
			if err := pgRepo.InitSchema(context.Background()); err != nil {
				logger.Fatal("Failed to initialize telemetry schema", zap.Error(err))
			}
			db = d
			telemetryRepo = pgRepo
			logger.Info("DB enabled for pdm-platform")
		} else {
			logger.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
		}
	}
	if telemetryRepo == nil {
		telemetryRepo = repository.NewMemoryTelemetryRepository()
	}

	// 初始化Redis（可选：最新读数缓存）
	var redisClient *redis.Client
	{
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, latest reading cache disabled", zap.Error(err))
			client.Close()
		} else {
			redisClient = client
		}
		cancel()
	}

	var cache *consumer.CacheManager
	if redisClient != nil {
		cache = consumer.NewCacheManager(cfg, redisClient, logger)
	}

	// 可选能力：FPGA 加速器
	var accel consumer.Accelerator
	if cfg.Accelerator.Enabled {
		accel = accelerator.NewFPGA(logger)
	}

	// 可选能力：异常报警 Webhook
	var alertNotifier consumer.Notifier
	if cfg.Alert.WebhookURL != "" {
		alertNotifier = notifier.NewWebhookNotifier(cfg.Alert.WebhookURL, cfg.Alert.Timeout, logger)
	}

	// 初始化MQTT客户端（连接失败只记录日志并后台重试）
	mqttClient := mqttcommon.NewClient(&cfg.MQTT, logger)
	mqttClient.Connect()

	// 接入管道
	mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, telemetryRepo, accel, cache, alertNotifier, logger)
	ingest := service.NewIngestService(cfg, mqttClient, mqttConsumer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := ingest.Start(ctx); err != nil {
			logger.Error("Ingest service stopped with error", zap.Error(err))
		}
	}()

	// 查询 API
	router := httpapi.NewRouter(logger)
	router.RegisterTelemetryRoutes(httpapi.NewTelemetryHandler(telemetryRepo, cache, logger))
	router.RegisterDoctorRoutes(httpapi.NewDoctorHandler(db, mqttClient, redisClient, logger))

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := ingest.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping ingest service", zap.Error(err))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis client", zap.Error(err))
		}
	}
	if db != nil {
		if err := database.Close(db); err != nil {
			logger.Error("Error closing database connection", zap.Error(err))
		}
	}

	logger.Info("Service stopped")
}
