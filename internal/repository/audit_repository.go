package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/db"
)

// AuditRepository appends to and reads the audit log. It has no update or delete.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(database *gorm.DB) *AuditRepository {
	return &AuditRepository{db: database}
}

func (r *AuditRepository) Insert(ctx context.Context, e *db.AuditLogEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// AuditFilter narrows Query. Empty fields match everything.
type AuditFilter struct {
	EventType     string
	ParticipantID string // acting or target user
}

// Query returns entries newest first.
func (r *AuditRepository) Query(ctx context.Context, f AuditFilter, limit int) ([]db.AuditLogEntry, error) {
	query := r.db.WithContext(ctx).Model(&db.AuditLogEntry{})
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}
	if f.ParticipantID != "" {
		query = query.Where("(actor_id = ? OR target_id = ?)", f.ParticipantID, f.ParticipantID)
	}

	var entries []db.AuditLogEntry
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
