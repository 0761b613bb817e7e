package custgorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/custodian-sh/custodian/core/audit"
)

// AuditRepository implements audit.Store using GORM. The table is
// append-only; nothing in the module updates or deletes audit rows.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Save(ctx context.Context, rec *audit.Record) error {
	return r.db.WithContext(ctx).Create(fromCoreAuditRecord(rec)).Error
}

// Recent returns the newest records for operational inspection.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []gormAuditRecord
	if err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]audit.Record, len(rows))
	for i, row := range rows {
		out[i] = audit.Record{
			ID:         row.ID,
			ActorID:    row.ActorID,
			Action:     audit.Action(row.Action),
			ResourceID: row.ResourceID,
			CreatedAt:  row.CreatedAt,
		}
	}
	return out, nil
}

var _ audit.Store = (*AuditRepository)(nil)
