package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
)

// PostgresTelemetryRepository 遥测数据Repository实现（PostgreSQL）
type PostgresTelemetryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresTelemetryRepository 创建遥测数据Repository
func NewPostgresTelemetryRepository(db *sql.DB, logger *zap.Logger) *PostgresTelemetryRepository {
	return &PostgresTelemetryRepository{
		db:     db,
		logger: logger,
	}
}

// 确保实现了接口
var _ TelemetryRepository = (*PostgresTelemetryRepository)(nil)

// InitSchema 初始化 telemetry 表结构（幂等）
func (r *PostgresTelemetryRepository) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS telemetry (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			timestamp TEXT NOT NULL DEFAULT '',
			vibration_level DOUBLE PRECISION NOT NULL DEFAULT 0,
			temperature DOUBLE PRECISION NOT NULL DEFAULT 0,
			anomaly BOOLEAN NOT NULL DEFAULT FALSE,
			accelerator_used BOOLEAN NOT NULL DEFAULT FALSE,
			accel_result DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create telemetry table: %w", err)
	}

	// 异常查询走部分索引
	index := `
		CREATE INDEX IF NOT EXISTS idx_telemetry_anomaly
		ON telemetry (id DESC) WHERE anomaly = TRUE
	`
	if _, err := r.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to create telemetry anomaly index: %w", err)
	}

	return nil
}

// Insert 插入遥测记录并返回分配的 id
// 单条 INSERT 自带事务语义：读取者要么看到完整记录，要么看不到
func (r *PostgresTelemetryRepository) Insert(ctx context.Context, record *domain.TelemetryRecord) (int64, error) {
	query := `
		INSERT INTO telemetry (
			device_id,
			timestamp,
			vibration_level,
			temperature,
			anomaly,
			accelerator_used,
			accel_result
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		query,
		record.DeviceID,
		record.Timestamp,
		record.VibrationLevel,
		record.Temperature,
		record.Anomaly,
		record.AcceleratorUsed,
		record.AccelResult,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to insert telemetry: %w", err)
	}

	record.ID = id
	return id, nil
}

// Recent 按 id 降序返回最近的 limit 条记录
func (r *PostgresTelemetryRepository) Recent(ctx context.Context, limit int) ([]*domain.TelemetryRecord, error) {
	return r.queryRecent(ctx, "", limit)
}

// RecentAnomalies 按 id 降序返回最近的 limit 条异常记录
func (r *PostgresTelemetryRepository) RecentAnomalies(ctx context.Context, limit int) ([]*domain.TelemetryRecord, error) {
	return r.queryRecent(ctx, "WHERE anomaly = TRUE", limit)
}

// queryRecent 通用的倒序查询
func (r *PostgresTelemetryRepository) queryRecent(ctx context.Context, where string, limit int) ([]*domain.TelemetryRecord, error) {
	// limit <= 0 直接返回空结果，不是错误
	if limit <= 0 {
		return []*domain.TelemetryRecord{}, nil
	}

	query := fmt.Sprintf(`
		SELECT
			id,
			device_id,
			timestamp,
			vibration_level,
			temperature,
			anomaly,
			accelerator_used,
			accel_result
		FROM telemetry
		%s
		ORDER BY id DESC
		LIMIT $1
	`, where)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.TelemetryRecord, 0, limit)
	for rows.Next() {
		var rec domain.TelemetryRecord
		var accelResult sql.NullFloat64

		if err := rows.Scan(
			&rec.ID,
			&rec.DeviceID,
			&rec.Timestamp,
			&rec.VibrationLevel,
			&rec.Temperature,
			&rec.Anomaly,
			&rec.AcceleratorUsed,
			&accelResult,
		); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry row: %w", err)
		}

		if accelResult.Valid {
			rec.AccelResult = &accelResult.Float64
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate telemetry rows: %w", err)
	}

	return records, nil
}
