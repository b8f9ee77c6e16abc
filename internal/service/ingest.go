package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/config"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/consumer"
	mqttcommon "github.com/AdityaChandel11/predictive-pdm-platform/internal/mqtt"
)

// IngestService 遥测接入服务
// 拥有 MQTT 连接与消费者的生命周期；与进程其余部分只通过遥测存储交互，
// 接入中断时查询 API 保持可用
type IngestService struct {
	config     *config.Config
	logger     *zap.Logger
	mqttClient *mqttcommon.Client
	consumer   *consumer.MQTTConsumer
}

// NewIngestService 创建接入服务
func NewIngestService(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	mqttConsumer *consumer.MQTTConsumer,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		config:     cfg,
		logger:     logger,
		mqttClient: mqttClient,
		consumer:   mqttConsumer,
	}
}

// Start 启动接入服务，阻塞直到 ctx 取消
// 连接失败不返回错误：订阅已登记，连接恢复后自动建立
func (s *IngestService) Start(ctx context.Context) error {
	s.logger.Info("Starting ingest service components")

	// 启动MQTT消费者（登记订阅）
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}

	return nil
}

// Stop 停止接入服务
func (s *IngestService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ingest service")

	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	s.logger.Info("Ingest service stopped")
	return nil
}
