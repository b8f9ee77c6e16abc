package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/config"
	applogger "github.com/AdityaChandel11/predictive-pdm-platform/internal/logger"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/models"
	mqttcommon "github.com/AdityaChandel11/predictive-pdm-platform/internal/mqtt"
)

// 模拟 ESP32 节点向 sensors/{device_id}/telemetry 发布合成遥测数据
// 约 10% 的读数为异常（振动尖峰）
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applogger.NewLogger(cfg.Log.Level, "console", "pdm-simulator")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	deviceCount := getEnvInt("SIM_DEVICES", 1)
	interval := getEnvDuration("SIM_INTERVAL", 2*time.Second)

	// 独立的客户端ID，避免与平台服务冲突
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("pdm-simulator-%s", uuid.NewString()[:8])

	client := mqttcommon.NewClient(&mqttCfg, logger)
	client.Connect()

	logger.Info("Simulating sensor nodes",
		zap.String("broker", mqttCfg.Broker),
		zap.Int("devices", deviceCount),
		zap.Duration("interval", interval),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !client.IsConnected() {
				logger.Warn("MQTT not connected, skipping publish cycle")
				continue
			}
			for i := 0; i < deviceCount; i++ {
				deviceID := fmt.Sprintf("device_%03d", i+1)
				if err := publishReading(client, cfg.MQTT.QoS, deviceID, logger); err != nil {
					logger.Error("Failed to publish reading",
						zap.String("device_id", deviceID),
						zap.Error(err),
					)
				}
			}
		case sig := <-sigChan:
			logger.Info("Simulation stopped", zap.String("signal", sig.String()))
			client.Disconnect()
			return
		}
	}
}

// publishReading 发布一条合成读数
func publishReading(client *mqttcommon.Client, qos byte, deviceID string, logger *zap.Logger) error {
	// 10% 概率产生异常（振动尖峰）
	isAnomaly := rand.Float64() > 0.90

	vibration := 0.1 + rand.Float64()*0.4
	if isAnomaly {
		vibration = 2.5 + rand.Float64()*2.5 // Spike!
	}

	msg := models.TelemetryMessage{
		DeviceID: deviceID,
		TS:       time.Now().Format("2006-01-02T15:04:05.000000"),
		Features: models.TelemetryFeature{
			VibrationMax: round4(vibration),
			Temp:         round1(40 + rand.Float64()*25),
		},
		Anomaly: isAnomaly,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	topic := fmt.Sprintf("sensors/%s/telemetry", deviceID)
	if err := client.Publish(topic, qos, false, payload); err != nil {
		return err
	}

	logger.Info("Published reading",
		zap.String("device_id", deviceID),
		zap.Bool("anomaly", msg.Anomaly),
		zap.Float64("vibration_max", msg.Features.VibrationMax),
	)

	return nil
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
