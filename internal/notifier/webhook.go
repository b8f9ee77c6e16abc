package notifier

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
)

// AlertPayload 推送给下游系统的报警消息
type AlertPayload struct {
	AlertID        string  `json:"alert_id"`
	DeviceID       string  `json:"device_id"`
	Timestamp      string  `json:"timestamp"`
	VibrationLevel float64 `json:"vibration_level"`
	Temperature    float64 `json:"temperature"`
	RecordID       int64   `json:"record_id"`
}

// WebhookNotifier 异常读数的 Webhook 推送客户端
// 推送失败只记录日志，绝不影响已入库的记录
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 Webhook 推送客户端
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Notify 推送一条异常报警
func (n *WebhookNotifier) Notify(record *domain.TelemetryRecord) error {
	payload := AlertPayload{
		AlertID:        uuid.NewString(),
		DeviceID:       record.DeviceID,
		Timestamp:      record.Timestamp,
		VibrationLevel: record.VibrationLevel,
		Temperature:    record.Temperature,
		RecordID:       record.ID,
	}

	resp, err := n.httpClient.R().
		SetBody(payload).
		Post(n.url)

	if err != nil {
		return fmt.Errorf("failed to post alert webhook: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}

	n.logger.Info("Alert webhook delivered",
		zap.String("device_id", record.DeviceID),
		zap.Int64("record_id", record.ID),
		zap.Int("status", resp.StatusCode()),
	)

	return nil
}
