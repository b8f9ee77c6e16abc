package consumer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/accelerator"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/config"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
	"github.com/AdityaChandel11/predictive-pdm-platform/internal/repository"
)

// countingAccelerator 统计调用次数的加速器桩
type countingAccelerator struct {
	calls int32
	inner *accelerator.FPGA
}

func (a *countingAccelerator) Compute(weight, input float64) float64 {
	atomic.AddInt32(&a.calls, 1)
	return a.inner.Compute(weight, input)
}

// channelNotifier 把收到的报警写入 channel 供测试断言
type channelNotifier struct {
	alerts chan *domain.TelemetryRecord
	err    error
}

func (n *channelNotifier) Notify(record *domain.TelemetryRecord) error {
	n.alerts <- record
	return n.err
}

// failingRepo 写入总是失败的Repository桩
type failingRepo struct{}

func (failingRepo) Insert(context.Context, *domain.TelemetryRecord) (int64, error) {
	return 0, errors.New("store unavailable")
}
func (failingRepo) Recent(context.Context, int) ([]*domain.TelemetryRecord, error) {
	return nil, errors.New("store unavailable")
}
func (failingRepo) RecentAnomalies(context.Context, int) ([]*domain.TelemetryRecord, error) {
	return nil, errors.New("store unavailable")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Telemetry.Topic = "sensors/+/telemetry"
	cfg.MQTT.QoS = 1
	cfg.Accelerator.Enabled = true
	cfg.Accelerator.Weight = 0.85
	cfg.Cache.LatestKeyPrefix = "telemetry:latest:"
	cfg.Cache.LatestTTL = time.Minute
	return cfg
}

func newTestConsumer(t *testing.T) (*MQTTConsumer, *repository.MemoryTelemetryRepository, *countingAccelerator) {
	t.Helper()

	repo := repository.NewMemoryTelemetryRepository()
	accel := &countingAccelerator{inner: accelerator.NewFPGA(zap.NewNop())}
	c := NewMQTTConsumer(testConfig(), nil, repo, accel, nil, nil, zap.NewNop())
	return c, repo, accel
}

func TestHandleMessage_EndToEndScenario(t *testing.T) {
	c, repo, accel := newTestConsumer(t)

	payload := `{"device_id":"d1","ts":"2024-01-01T00:00:00","features":{"vibration_max":4.0,"temp":55.0},"anomaly":true}`
	require.NoError(t, c.HandleMessage("sensors/d1/telemetry", []byte(payload)))

	records, err := repo.Recent(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "d1", rec.DeviceID)
	assert.Equal(t, "2024-01-01T00:00:00", rec.Timestamp)
	assert.Equal(t, 4.0, rec.VibrationLevel)
	assert.Equal(t, 55.0, rec.Temperature)
	assert.True(t, rec.Anomaly)
	assert.True(t, rec.AcceleratorUsed)
	require.NotNil(t, rec.AccelResult)

	// 0.85*256=217，4.0*256=1024，217*1024/65536=3.390625
	assert.InDelta(t, 3.390625, *rec.AccelResult, 1e-12)
	assert.Equal(t, int32(1), atomic.LoadInt32(&accel.calls))

	// 异常查询中同样排在第一位
	alerts, err := repo.RecentAnomalies(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, rec.ID, alerts[0].ID)
}

func TestHandleMessage_MissingFeaturesDefaults(t *testing.T) {
	c, repo, accel := newTestConsumer(t)

	// features 整体缺失：振动/温度默认 0.0，anomaly 默认 false，记录仍然创建
	payload := `{"device_id":"d2","ts":"2024-01-01T00:00:01"}`
	require.NoError(t, c.HandleMessage("sensors/d2/telemetry", []byte(payload)))

	records, err := repo.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "d2", rec.DeviceID)
	assert.Equal(t, 0.0, rec.VibrationLevel)
	assert.Equal(t, 0.0, rec.Temperature)
	assert.False(t, rec.Anomaly)
	assert.False(t, rec.AcceleratorUsed)
	assert.Nil(t, rec.AccelResult)
	assert.Equal(t, int32(0), atomic.LoadInt32(&accel.calls))
}

func TestHandleMessage_MalformedPayloadDropped(t *testing.T) {
	c, repo, _ := newTestConsumer(t)

	// 无法解码的消息：报错丢弃，零写入
	err := c.HandleMessage("sensors/d1/telemetry", []byte("not-json"))
	assert.Error(t, err)

	records, qerr := repo.Recent(context.Background(), 20)
	require.NoError(t, qerr)
	assert.Empty(t, records)

	// 后续合法消息不受影响
	payload := `{"device_id":"d1","ts":"2024-01-01T00:00:02","features":{"vibration_max":0.3,"temp":41.0},"anomaly":false}`
	require.NoError(t, c.HandleMessage("sensors/d1/telemetry", []byte(payload)))

	records, qerr = repo.Recent(context.Background(), 20)
	require.NoError(t, qerr)
	assert.Len(t, records, 1)
}

func TestHandleMessage_AcceleratorGating(t *testing.T) {
	c, repo, accel := newTestConsumer(t)

	// anomaly=false：无论振动多大都不触发加速器
	payload := `{"device_id":"d1","ts":"2024-01-01T00:00:03","features":{"vibration_max":99.9,"temp":55.0},"anomaly":false}`
	require.NoError(t, c.HandleMessage("sensors/d1/telemetry", []byte(payload)))

	assert.Equal(t, int32(0), atomic.LoadInt32(&accel.calls))

	records, err := repo.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].AcceleratorUsed)
	assert.Nil(t, records[0].AccelResult)
}

func TestHandleMessage_AcceleratorAbsent(t *testing.T) {
	repo := repository.NewMemoryTelemetryRepository()
	// 不注入加速器：管道统一，异常记录照常入库
	c := NewMQTTConsumer(testConfig(), nil, repo, nil, nil, nil, zap.NewNop())

	payload := `{"device_id":"d1","ts":"2024-01-01T00:00:04","features":{"vibration_max":3.0,"temp":60.0},"anomaly":true}`
	require.NoError(t, c.HandleMessage("sensors/d1/telemetry", []byte(payload)))

	records, err := repo.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Anomaly)
	assert.False(t, records[0].AcceleratorUsed)
	assert.Nil(t, records[0].AccelResult)
}

func TestHandleMessage_DeviceIDFromTopicFallback(t *testing.T) {
	c, repo, _ := newTestConsumer(t)

	// 消息未携带 device_id，回退到主题段
	payload := `{"ts":"2024-01-01T00:00:05","features":{"vibration_max":0.2,"temp":45.0}}`
	require.NoError(t, c.HandleMessage("sensors/device_042/telemetry", []byte(payload)))

	records, err := repo.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "device_042", records[0].DeviceID)
}

func TestHandleMessage_InsertFailureDropped(t *testing.T) {
	c := NewMQTTConsumer(testConfig(), nil, failingRepo{}, nil, nil, nil, zap.NewNop())

	payload := `{"device_id":"d1","ts":"2024-01-01T00:00:06"}`
	err := c.HandleMessage("sensors/d1/telemetry", []byte(payload))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert telemetry record")
}

func TestHandleMessage_UpdatesLatestCache(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	cfg := testConfig()
	repo := repository.NewMemoryTelemetryRepository()
	cache := NewCacheManager(cfg, redisClient, zap.NewNop())
	c := NewMQTTConsumer(cfg, nil, repo, nil, cache, nil, zap.NewNop())

	payload := `{"device_id":"d9","ts":"2024-01-01T00:00:07","features":{"vibration_max":0.4,"temp":50.0}}`
	require.NoError(t, c.HandleMessage("sensors/d9/telemetry", []byte(payload)))

	cached, err := cache.GetLatest(context.Background(), "d9")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "d9", cached.DeviceID)
	assert.Equal(t, 0.4, cached.VibrationLevel)
	assert.True(t, mr.Exists("telemetry:latest:d9"))
}

func TestHandleMessage_NotifiesOnAnomaly(t *testing.T) {
	repo := repository.NewMemoryTelemetryRepository()
	n := &channelNotifier{alerts: make(chan *domain.TelemetryRecord, 1)}
	c := NewMQTTConsumer(testConfig(), nil, repo, nil, nil, n, zap.NewNop())

	payload := `{"device_id":"d1","ts":"2024-01-01T00:00:08","features":{"vibration_max":3.3,"temp":61.0},"anomaly":true}`
	require.NoError(t, c.HandleMessage("sensors/d1/telemetry", []byte(payload)))

	select {
	case alert := <-n.alerts:
		assert.Equal(t, "d1", alert.DeviceID)
		assert.Equal(t, 3.3, alert.VibrationLevel)
	case <-time.After(2 * time.Second):
		t.Fatal("expected alert notification")
	}

	// 正常读数不推送
	payload = `{"device_id":"d1","ts":"2024-01-01T00:00:09","features":{"vibration_max":0.2,"temp":44.0}}`
	require.NoError(t, c.HandleMessage("sensors/d1/telemetry", []byte(payload)))

	select {
	case <-n.alerts:
		t.Fatal("unexpected alert for normal reading")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDeviceIDFromTopic(t *testing.T) {
	assert.Equal(t, "device_001", deviceIDFromTopic("sensors/device_001/telemetry"))
	assert.Equal(t, "", deviceIDFromTopic("sensors"))
	assert.Equal(t, "", deviceIDFromTopic("bad/topic"))
}
