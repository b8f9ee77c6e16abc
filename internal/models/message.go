package models

// TelemetryMessage 设备上报的 MQTT 消息结构（瞬态，不持久化）
// 除整体必须是合法 JSON 外，所有字段均可缺失，缺失时按默认值处理
type TelemetryMessage struct {
	DeviceID string           `json:"device_id"` // 设备标识
	TS       string           `json:"ts"`        // ISO-8601 时间戳
	Features TelemetryFeature `json:"features"`  // 特征值
	Anomaly  bool             `json:"anomaly"`   // 异常标志（缺失默认 false）
}

// TelemetryFeature 特征值字段
type TelemetryFeature struct {
	VibrationMax float64 `json:"vibration_max"` // 振动峰值（缺失默认 0.0）
	Temp         float64 `json:"temp"`          // 温度（缺失默认 0.0）
}
