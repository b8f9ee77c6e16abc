package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/consumer"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/repository"
)

const (
	defaultTelemetryLimit = 20
	defaultAlertsLimit    = 10
	maxLimit              = 1000
)

// TelemetryHandler 遥测查询 Handler（只读）
type TelemetryHandler struct {
	telemetryRepo repository.TelemetryRepository
	cache         *consumer.CacheManager // 可选
	logger        *zap.Logger
}

// NewTelemetryHandler 创建遥测查询 Handler
func NewTelemetryHandler(
	telemetryRepo repository.TelemetryRepository,
	cache *consumer.CacheManager,
	logger *zap.Logger,
) *TelemetryHandler {
	return &TelemetryHandler{
		telemetryRepo: telemetryRepo,
		cache:         cache,
		logger:        logger,
	}
}

// GetTelemetry 查询最近的遥测记录（id 降序）
func (h *TelemetryHandler) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := parseInt(r.URL.Query().Get("limit"), defaultTelemetryLimit)
	if limit > maxLimit {
		limit = maxLimit
	}

	records, err := h.telemetryRepo.Recent(ctx, limit)
	if err != nil {
		h.logger.Error("Failed to query telemetry", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// GetAlerts 查询最近的异常记录（id 降序）
func (h *TelemetryHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := parseInt(r.URL.Query().Get("limit"), defaultAlertsLimit)
	if limit > maxLimit {
		limit = maxLimit
	}

	records, err := h.telemetryRepo.RecentAnomalies(ctx, limit)
	if err != nil {
		h.logger.Error("Failed to query alerts", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// GetDeviceLatest 查询单个设备的最新缓存读数
// 路由格式: /devices/{device_id}/latest
func (h *TelemetryHandler) GetDeviceLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path := strings.TrimPrefix(r.URL.Path, "/devices/")
	deviceID := strings.TrimSuffix(path, "/latest")
	if deviceID == "" || deviceID == path || strings.Contains(deviceID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if h.cache == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cache disabled"})
		return
	}

	record, err := h.cache.GetLatest(ctx, deviceID)
	if err != nil {
		h.logger.Error("Failed to query latest reading cache",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cache unavailable"})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no recent reading for device"})
		return
	}

	writeJSON(w, http.StatusOK, record)
}
