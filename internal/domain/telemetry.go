package domain

// TelemetryRecord 遥测记录领域模型（对应 telemetry 表）
// 一条归一化后的传感器观测值，插入后不可变
type TelemetryRecord struct {
	// 主键（插入时由存储层分配，严格递增）
	ID int64 `json:"id" db:"id"`

	// 设备标识
	DeviceID string `json:"device_id" db:"device_id"`

	// 生产者上报的时间戳（ISO-8601 字符串，不与本地时钟校验）
	Timestamp string `json:"timestamp" db:"timestamp"`

	// 特征值（消息缺失时默认 0.0）
	VibrationLevel float64 `json:"vibration_level" db:"vibration_level"`
	Temperature    float64 `json:"temperature" db:"temperature"`

	// 生产者断言的异常标志
	Anomaly bool `json:"anomaly" db:"anomaly"`

	// 是否调用了 FPGA 加速器（仅在 Anomaly 为 true 时可能为 true）
	AcceleratorUsed bool `json:"accelerator_used" db:"accelerator_used"`

	// 加速器计算结果（未调用时为 nil）
	AccelResult *float64 `json:"accel_result,omitempty" db:"accel_result"`
}
