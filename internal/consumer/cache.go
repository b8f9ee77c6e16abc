package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/config"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
)

// CacheManager 设备最新读数的 Redis 缓存管理器
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// latestKey 构建缓存键，如 "telemetry:latest:device_001"
func (c *CacheManager) latestKey(deviceID string) string {
	return fmt.Sprintf("%s%s", c.config.Cache.LatestKeyPrefix, deviceID)
}

// UpdateLatest 更新设备最新读数缓存（设置 TTL）
func (c *CacheManager) UpdateLatest(ctx context.Context, record *domain.TelemetryRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry record: %w", err)
	}

	key := c.latestKey(record.DeviceID)
	if err := c.redisClient.Set(ctx, key, jsonData, c.config.Cache.LatestTTL).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated latest reading cache",
		zap.String("device_id", record.DeviceID),
		zap.String("key", key),
	)

	return nil
}

// GetLatest 读取设备最新读数；缓存未命中返回 (nil, nil)
func (c *CacheManager) GetLatest(ctx context.Context, deviceID string) (*domain.TelemetryRecord, error) {
	val, err := c.redisClient.Get(ctx, c.latestKey(deviceID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	var record domain.TelemetryRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached record: %w", err)
	}

	return &record, nil
}
