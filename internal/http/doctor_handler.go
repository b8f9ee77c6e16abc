package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MQTTStatus MQTT 连接状态探测（由 mqtt.Client 实现）
type MQTTStatus interface {
	IsConnected() bool
}

// DoctorHandler 诊断处理器
// 各子组件独立上报状态：存储、MQTT、缓存任一降级都不影响其它组件的可用性上报
type DoctorHandler struct {
	db          *sql.DB
	mqttClient  MQTTStatus
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewDoctorHandler 创建诊断处理器
func NewDoctorHandler(db *sql.DB, mqttClient MQTTStatus, redisClient *redis.Client, logger *zap.Logger) *DoctorHandler {
	return &DoctorHandler{
		db:          db,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// HealthCheckResponse 健康检查响应
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck 健康检查端点
// 始终返回 200：健康信息是报告性的，接入断开不应导致 API 拒绝请求
func (d *DoctorHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "online"
	services := make(map[string]string)

	// 检查数据库
	if d.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := d.db.PingContext(ctx); err != nil {
			status = "degraded"
			services["db"] = "disconnected: " + err.Error()
		} else {
			services["db"] = "connected"
		}
	} else {
		// DB 关闭时使用内存存储
		services["db"] = "memory"
	}

	// 检查 MQTT（接入管道的传输连接）
	if d.mqttClient != nil {
		if d.mqttClient.IsConnected() {
			services["mqtt"] = "listening"
		} else {
			status = "degraded"
			services["mqtt"] = "disconnected"
		}
	} else {
		status = "degraded"
		services["mqtt"] = "disabled"
	}

	// 检查 Redis（最新读数缓存，可选组件）
	if d.redisClient != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := d.redisClient.Ping(ctx).Err(); err != nil {
			services["redis"] = "disconnected: " + err.Error()
		} else {
			services["redis"] = "connected"
		}
	} else {
		services["redis"] = "disabled"
	}

	writeJSON(w, http.StatusOK, HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
	})
}
