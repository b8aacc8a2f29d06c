package gorm

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/faqlearn/internal/db"
	"github.com/thebtf/faqlearn/pkg/models"
)

// AuditStore is the audit trail backed by GORM.
type AuditStore struct {
	store *Store
	db    *gorm.DB
}

// NewAuditStore creates a new audit store.
func NewAuditStore(store *Store) *AuditStore {
	return &AuditStore{store: store, db: store.DB}
}

// AppendAudit inserts an entry.
func (s *AuditStore) AppendAudit(ctx context.Context, e *models.AuditLog) error {
	row := &AuditLog{
		ID:           e.ID,
		Action:       e.Action,
		Severity:     e.Severity,
		UserID:       e.UserID,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Timestamp:    e.Timestamp,
		Success:      e.Success,
		Details:      e.Details,
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// ListAudit returns matching entries, newest first.
func (s *AuditStore) ListAudit(ctx context.Context, f db.AuditFilter) ([]*models.AuditLog, error) {
	query := s.db.WithContext(ctx).Model(&AuditLog{})
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		query = query.Where("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != "" {
		query = query.Where("resource_id = ?", f.ResourceID)
	}
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.From != nil {
		query = query.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("timestamp <= ?", *f.To)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var rows []AuditLog
	if err := query.Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.AuditLog, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

// PurgeAudit deletes entries older than the cutoff.
func (s *AuditStore) PurgeAudit(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := s.store.WithTimeout(ctx, SlowQueryTimeout, "purge_audit")
	defer cancel()

	result := s.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&AuditLog{})
	return result.RowsAffected, result.Error
}
