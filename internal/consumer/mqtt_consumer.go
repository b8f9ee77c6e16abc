package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/config"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/models"
	mqttcommon "github.com/AdityaChandel11/predictive-pdm-platform/internal/mqtt"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/repository"
)

// Accelerator 加速器能力（可选注入，nil 表示不启用）
type Accelerator interface {
	Compute(weight, input float64) float64
}

// Notifier 异常报警推送能力（可选注入，nil 表示不启用）
type Notifier interface {
	Notify(record *domain.TelemetryRecord) error
}

// MQTTConsumer 遥测消息消费者
// 订阅 sensors/+/telemetry，逐条解码、归一化、按需调用加速器并写入存储；
// 单条消息的任何错误只记录日志并丢弃该消息，订阅持续处理后续消息
type MQTTConsumer struct {
	config        *config.Config
	mqttClient    *mqttcommon.Client
	telemetryRepo repository.TelemetryRepository
	accelerator   Accelerator   // 可选
	cache         *CacheManager // 可选
	notifier      Notifier      // 可选
	logger        *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	telemetryRepo repository.TelemetryRepository,
	accelerator Accelerator,
	cache *CacheManager,
	notifier Notifier,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:        cfg,
		mqttClient:    mqttClient,
		telemetryRepo: telemetryRepo,
		accelerator:   accelerator,
		cache:         cache,
		notifier:      notifier,
		logger:        logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	// 订阅遥测数据主题
	if err := c.mqttClient.Subscribe(c.config.Telemetry.Topic, c.config.MQTT.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.Telemetry.Topic),
		zap.Bool("accelerator", c.accelerator != nil),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.Telemetry.Topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// HandleMessage 处理单条MQTT消息
// 返回的错误由上层记录日志，不会中断订阅
func (c *MQTTConsumer) HandleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 解码消息；无法解码的消息直接丢弃，不产生记录
	var msg models.TelemetryMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal telemetry message: %w", err)
	}

	// 2. 归一化：缺失字段按默认值处理
	// 消息未携带 device_id 时回退到主题段 sensors/{device_id}/telemetry
	deviceID := msg.DeviceID
	if deviceID == "" {
		deviceID = deviceIDFromTopic(topic)
	}

	record := &domain.TelemetryRecord{
		DeviceID:       deviceID,
		Timestamp:      msg.TS,
		VibrationLevel: msg.Features.VibrationMax,
		Temperature:    msg.Features.Temp,
		Anomaly:        msg.Anomaly,
	}

	// 3. 异常读数走加速计算路径
	if record.Anomaly && c.accelerator != nil {
		result := c.accelerator.Compute(c.config.Accelerator.Weight, record.VibrationLevel)
		record.AcceleratorUsed = true
		record.AccelResult = &result

		c.logger.Info("Accelerated anomaly score computed",
			zap.String("device_id", record.DeviceID),
			zap.Float64("vibration_max", record.VibrationLevel),
			zap.Float64("result", result),
		)
	}

	// 4. 写入存储；失败则丢弃本条消息（不重试）
	id, err := c.telemetryRepo.Insert(context.Background(), record)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry record: %w", err)
	}

	c.logger.Info("Telemetry record stored",
		zap.Int64("id", id),
		zap.String("device_id", record.DeviceID),
		zap.Bool("anomaly", record.Anomaly),
		zap.Bool("accelerator_used", record.AcceleratorUsed),
	)

	// 5. 更新最新读数缓存；缓存失败不影响已入库的记录
	if c.cache != nil {
		if err := c.cache.UpdateLatest(context.Background(), record); err != nil {
			c.logger.Warn("Failed to update latest reading cache",
				zap.String("device_id", record.DeviceID),
				zap.Error(err),
			)
		}
	}

	// 6. 异常读数异步推送报警，不阻塞消费路径
	if record.Anomaly && c.notifier != nil {
		go func(rec domain.TelemetryRecord) {
			if err := c.notifier.Notify(&rec); err != nil {
				c.logger.Warn("Failed to deliver alert webhook",
					zap.String("device_id", rec.DeviceID),
					zap.Error(err),
				)
			}
		}(*record)
	}

	return nil
}

// deviceIDFromTopic 从主题中提取设备标识
// 主题格式: sensors/{device_id}/telemetry
func deviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
