package repository

import (
	"context"
	"sync"

	"github.com/AdityaChandel11/predictive-pdm-platform/internal/domain"
)

// MemoryTelemetryRepository supports dev runs when DB is disabled and acts
// as the repository test double. Ids are sequential from 1, gapless.
type MemoryTelemetryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []*domain.TelemetryRecord
}

func NewMemoryTelemetryRepository() *MemoryTelemetryRepository {
	return &MemoryTelemetryRepository{nextID: 1}
}

var _ TelemetryRepository = (*MemoryTelemetryRepository)(nil)

func (r *MemoryTelemetryRepository) Insert(_ context.Context, record *domain.TelemetryRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy so later caller mutations can't corrupt stored state.
	stored := *record
	stored.ID = r.nextID
	if record.AccelResult != nil {
		v := *record.AccelResult
		stored.AccelResult = &v
	}
	r.nextID++
	r.records = append(r.records, &stored)

	record.ID = stored.ID
	return stored.ID, nil
}

func (r *MemoryTelemetryRepository) Recent(_ context.Context, limit int) ([]*domain.TelemetryRecord, error) {
	return r.filter(limit, func(*domain.TelemetryRecord) bool { return true })
}

func (r *MemoryTelemetryRepository) RecentAnomalies(_ context.Context, limit int) ([]*domain.TelemetryRecord, error) {
	return r.filter(limit, func(rec *domain.TelemetryRecord) bool { return rec.Anomaly })
}

func (r *MemoryTelemetryRepository) filter(limit int, keep func(*domain.TelemetryRecord) bool) ([]*domain.TelemetryRecord, error) {
	if limit <= 0 {
		return []*domain.TelemetryRecord{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.TelemetryRecord, 0, limit)
	// records is append-only in id order; walk backwards for newest first
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(r.records[i]) {
			rec := *r.records[i]
			out = append(out, &rec)
		}
	}
	return out, nil
}
