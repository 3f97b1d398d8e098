package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/db"
)

// MessageRepository stores chat messages. Messages are immutable once written.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListByMatch returns the messages of one match in creation order.
func (r *MessageRepository) ListByMatch(ctx context.Context, matchID string) ([]db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

// DeleteByMatchIDs removes the messages of the given matches.
func (r *MessageRepository) DeleteByMatchIDs(ctx context.Context, matchIDs []string) (int64, error) {
	if len(matchIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("match_id IN ?", matchIDs).Delete(&db.Message{})
	return res.RowsAffected, res.Error
}
