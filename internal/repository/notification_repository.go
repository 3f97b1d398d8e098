package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/db"
)

// NotificationRepository stores like and match notifications.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(database *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

// CreateIfAbsent inserts a notification unless one exists for the same
// (recipient, origin, type). Returns whether a row was written.
func (r *NotificationRepository) CreateIfAbsent(
	ctx context.Context,
	recipientID, originID string,
	typ db.NotificationType,
) (*db.Notification, bool, error) {
	n := &db.Notification{
		RecipientID: recipientID,
		OriginID:    originID,
		Type:        typ,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recipient_id"}, {Name: "origin_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(n)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return n, res.RowsAffected == 1, nil
}

// MarkRead flags recipient's notification from origin of the given type as read.
func (r *NotificationRepository) MarkRead(
	ctx context.Context,
	recipientID, originID string,
	typ db.NotificationType,
) error {
	return r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("recipient_id = ? AND origin_id = ? AND type = ? AND is_read = ?", recipientID, originID, typ, false).
		Update("is_read", true).Error
}

// Get loads a single notification, mostly for tests and realtime payloads.
func (r *NotificationRepository) Get(
	ctx context.Context,
	recipientID, originID string,
	typ db.NotificationType,
) (*db.Notification, error) {
	var n db.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND origin_id = ? AND type = ?", recipientID, originID, typ).
		Take(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteForUser removes notifications sent to or caused by userID.
func (r *NotificationRepository) DeleteForUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("recipient_id = ? OR origin_id = ?", userID, userID).
		Delete(&db.Notification{}).Error
}
