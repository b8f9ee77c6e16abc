package repository

import (
	"context"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
)

// TelemetryRepository 遥测数据Repository接口
// 写入由接入管道负责，查询由 HTTP API 使用；实现必须支持
// 单写入者与多个并发读取者（同步在实现内部完成）
type TelemetryRepository interface {
	// Insert 追加一条记录并分配下一个 id
	Insert(ctx context.Context, record *domain.TelemetryRecord) (int64, error)

	// Recent 按 id 降序返回最近的 limit 条记录（limit <= 0 返回空切片）
	Recent(ctx context.Context, limit int) ([]*domain.TelemetryRecord, error)

	// RecentAnomalies 按 id 降序返回最近的 limit 条异常记录（limit <= 0 返回空切片）
	RecentAnomalies(ctx context.Context, limit int) ([]*domain.TelemetryRecord, error)
}
