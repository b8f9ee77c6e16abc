package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/accelerator"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/config"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/consumer"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/repository"
)

// 端到端场景：消息经接入管道入库后立即出现在两个查询端点的首位
func TestPipelineToQuery_EndToEnd(t *testing.T) {
	cfg := &config.Config{}
	cfg.Telemetry.Topic = "sensors/+/telemetry"
	cfg.Accelerator.Weight = 0.85

	logger := zap.NewNop()
	repo := repository.NewMemoryTelemetryRepository()
	fpga := accelerator.NewFPGA(logger)
	ingest := consumer.NewMQTTConsumer(cfg, nil, repo, fpga, nil, nil, logger)

	// 正常读数打底
	require.NoError(t, ingest.HandleMessage("sensors/d0/telemetry",
		[]byte(`{"device_id":"d0","ts":"2023-12-31T23:59:59","features":{"vibration_max":0.2,"temp":42.0},"anomaly":false}`)))

	// 规格中的端到端场景消息
	require.NoError(t, ingest.HandleMessage("sensors/d1/telemetry",
		[]byte(`{"device_id":"d1","ts":"2024-01-01T00:00:00","features":{"vibration_max":4.0,"temp":55.0},"anomaly":true}`)))

	router := NewRouter(logger)
	router.RegisterTelemetryRoutes(NewTelemetryHandler(repo, nil, logger))

	for _, target := range []string{"/telemetry", "/alerts"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, target)

		var records []*domain.TelemetryRecord
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
		require.NotEmpty(t, records, target)

		first := records[0]
		assert.Equal(t, "d1", first.DeviceID, target)
		assert.True(t, first.Anomaly, target)
		assert.True(t, first.AcceleratorUsed, target)
		assert.Equal(t, 4.0, first.VibrationLevel, target)
	}
}
