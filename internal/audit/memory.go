package audit

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/campusrec/campusrec/internal/shared"
)

// MemoryLog keeps the audit trail in process. Entries are also written to
// the structured log so they survive a restart in the log pipeline.
type MemoryLog struct {
	mu   sync.RWMutex
	rows []TimelineRow
	sink shared.LogAuditor
	now  func() time.Time
}

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog(logger *slog.Logger) *MemoryLog {
	return &MemoryLog{sink: shared.LogAuditor{Logger: logger}, now: time.Now}
}

// Record implements rbac.AuditPort.
func (m *MemoryLog) Record(ctx context.Context, log shared.AuditLog) error {
	if err := m.sink.Record(ctx, log); err != nil {
		return err
	}
	at := log.At
	if at.IsZero() {
		at = m.now()
	}
	m.mu.Lock()
	m.rows = append(m.rows, TimelineRow{
		At:       at.UTC(),
		Actor:    log.ActorID,
		Action:   log.Action,
		Entity:   log.Entity,
		EntityID: log.EntityID,
		Meta:     maps.Clone(log.Meta),
	})
	m.mu.Unlock()
	return nil
}

// Window implements Repository. Rows come back newest first; entries recorded
// at the same instant keep reverse insertion order.
func (m *MemoryLog) Window(_ context.Context, params WindowParams) ([]TimelineRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []TimelineRow
	skipped := 0
	for i := len(m.rows) - 1; i >= 0; i-- {
		row := m.rows[i]
		if !params.matches(row) {
			continue
		}
		if skipped < params.Offset {
			skipped++
			continue
		}
		row.Meta = maps.Clone(row.Meta)
		out = append(out, row)
		if params.Limit > 0 && len(out) == params.Limit {
			break
		}
	}
	return out, nil
}
