package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
)

// TelemetryExportHeader 遥测导出表头
var TelemetryExportHeader = []string{
	"ID",
	"Device ID",
	"Timestamp",
	"Vibration Level",
	"Temperature",
	"Anomaly",
	"Accelerator Used",
	"Accel Result",
}

const defaultExportLimit = 500

// ExportTelemetry 导出最近的遥测记录为 Excel 文件
func (h *TelemetryHandler) ExportTelemetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := parseInt(r.URL.Query().Get("limit"), defaultExportLimit)
	if limit > maxLimit {
		limit = maxLimit
	}

	records, err := h.telemetryRepo.Recent(ctx, limit)
	if err != nil {
		h.logger.Error("Failed to query telemetry for export", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable"})
		return
	}

	data, err := generateTelemetryExcel(records)
	if err != nil {
		h.logger.Error("Failed to generate telemetry export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
		return
	}

	filename := fmt.Sprintf("telemetry_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(data)
}

// generateTelemetryExcel 生成遥测记录 Excel 文件
func generateTelemetryExcel(records []*domain.TelemetryRecord) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteToBuffer needs the file to be open

	sheetName := "Telemetry"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close() // Close on error
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range TelemetryExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	// 写入数据行
	for row, rec := range records {
		values := []any{
			rec.ID,
			rec.DeviceID,
			rec.Timestamp,
			rec.VibrationLevel,
			rec.Temperature,
			rec.Anomaly,
			rec.AcceleratorUsed,
		}
		if rec.AccelResult != nil {
			values = append(values, *rec.AccelResult)
		} else {
			values = append(values, "")
		}

		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set data cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}
