package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/db"
)

// MatchRepository provides data access for matches and their mission state.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// CreateIfAbsent inserts m unless a match for the same sorted pair exists.
//
// Behavior:
//   - User ids are sorted before the insert.
//   - On conflict with idx_matches_pair nothing is written; the existing row is
//     loaded and returned with created = false. Concurrent reciprocal swipes
//     therefore converge on exactly one row.
//
// Example:
//
//	match, created, err := repo.CreateIfAbsent(ctx, &db.Match{User1ID: "b", User2ID: "a", ...})
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, m *db.Match) (db.Match, bool, error) {
	m.User1ID, m.User2ID = db.SortedPair(m.User1ID, m.User2ID)

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return db.Match{}, false, res.Error
	}
	if res.RowsAffected == 1 {
		return *m, true, nil
	}

	existing, err := r.GetByPair(ctx, m.User1ID, m.User2ID)
	if err != nil {
		return db.Match{}, false, err
	}
	return *existing, false, nil
}

func (r *MatchRepository) Get(ctx context.Context, id string) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByPair loads the match between a and b in either order.
func (r *MatchRepository) GetByPair(ctx context.Context, a, b string) (*db.Match, error) {
	u1, u2 := db.SortedPair(a, b)
	var m db.Match
	if err := r.db.WithContext(ctx).Where("user1_id = ? AND user2_id = ?", u1, u2).Take(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListForUser returns every match of userID, newest first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID string) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC, id ASC").
		Find(&matches).Error
	return matches, err
}

// AdvanceMission moves the mission checklist one step forward.
//
// Behavior:
//   - mission_number < 3 → mission_number + 1.
//   - mission_number = 3 → mission_completed = true, mission_completed_at = now.
//   - Already completed → nothing changes, advanced = false.
//   - Each step is a conditional UPDATE, so concurrent callers never move it backwards.
func (r *MatchRepository) AdvanceMission(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND mission_completed = ? AND mission_number < ?", id, false, 3).
		Update("mission_number", gorm.Expr("mission_number + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND mission_completed = ? AND mission_number = ?", id, false, 3).
		Updates(map[string]any{
			"mission_completed":    true,
			"mission_completed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IDsForUser lists the ids of every match involving userID.
func (r *MatchRepository) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteForUser removes every match involving userID and reports how many went.
func (r *MatchRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Delete(&db.Match{})
	return res.RowsAffected, res.Error
}

// CountForUser is used by tests and the admin surface to verify cascades.
func (r *MatchRepository) CountForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}
