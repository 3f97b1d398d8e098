package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/db"
	"github.com/oggyb/campus-match/internal/utils/pagination"
)

// SwipeRepository provides data access methods for the Swipe model.
// It encapsulates all queries related to left/right swipes between users.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// Insert records swiper -> swiped once.
//
// Behavior:
//   - If (swiper_id, swiped_id) does not exist → a new row is inserted, created = true.
//   - If it exists → nothing is written and the stored row is returned, created = false.
//     A repeated swipe never changes the original direction.
//
// Example:
//
//	swipe, created, err := repo.Insert(ctx, "u1", "u2", db.DirectionRight)
func (r *SwipeRepository) Insert(
	ctx context.Context,
	swiperID, swipedID string,
	direction db.Direction,
) (db.Swipe, bool, error) {
	swipe := db.Swipe{
		SwiperID:  swiperID,
		SwipedID:  swipedID,
		Direction: direction,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "swiper_id"}, {Name: "swiped_id"}},
			DoNothing: true,
		}).
		Create(&swipe)
	if res.Error != nil {
		return db.Swipe{}, false, res.Error
	}
	if res.RowsAffected == 1 {
		return swipe, true, nil
	}

	var existing db.Swipe
	err := r.db.WithContext(ctx).
		Where("swiper_id = ? AND swiped_id = ?", swiperID, swipedID).
		Take(&existing).Error
	return existing, false, err
}

// Delete removes one swipe. Used to undo an insert whose follow-up steps failed.
func (r *SwipeRepository) Delete(ctx context.Context, swiperID, swipedID string) error {
	return r.db.WithContext(ctx).
		Where("swiper_id = ? AND swiped_id = ?", swiperID, swipedID).
		Delete(&db.Swipe{}).Error
}

// HasSwipedRight checks whether swiper has swiped right on swiped.
//
// Behavior:
//   - Returns true if there exists a row where swiper_id = X, swiped_id = Y
//     and direction = right.
//   - Used for the secret-admirer pre-check and the reciprocity check.
//
// Example:
//
//	repo.HasSwipedRight(ctx, "u1", "u2") // -> true if u1 liked u2
func (r *SwipeRepository) HasSwipedRight(ctx context.Context, swiperID, swipedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("swiper_id = ? AND swiped_id = ? AND direction = ?", swiperID, swipedID, db.DirectionRight).
		Count(&count).Error
	return count > 0, err
}

// ListAdmirers returns right swipes on userID that userID has not answered yet.
//
// Behavior:
//   - Only swipes where swiped_id = X and direction = right are considered.
//   - Excludes swipers X already swiped on, in either direction, and banned swipers.
//   - Ordered by created_at DESC, swiper_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListAdmirers(ctx, "u42", "", 20) // first 20 pending admirers of u42
func (r *SwipeRepository) ListAdmirers(
	ctx context.Context,
	userID string,
	paginationToken string,
	limit int,
) ([]db.Swipe, string, error) {
	cursor, err := pagination.Decode(paginationToken)
	if err != nil {
		return nil, "", err
	}

	query := r.admirers(ctx, userID).
		Order("s.created_at DESC, s.swiper_id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.ID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(s.created_at < ? OR (s.created_at = ? AND s.swiper_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var swipes []db.Swipe
	if err := query.Select("s.*").Find(&swipes).Error; err != nil {
		return nil, "", err
	}

	// pagination: build next cursor if needed
	hasMore := len(swipes) > limit
	if hasMore {
		swipes = swipes[:limit]
	}
	var last pagination.Cursor
	if len(swipes) > 0 {
		tail := swipes[len(swipes)-1]
		last = pagination.Cursor{ID: tail.SwiperID, CreatedUnix: tail.CreatedAt.UnixMilli()}
	}
	return swipes, pagination.Next(hasMore, last), nil
}

// CountAdmirers returns how many unanswered right swipes userID has.
// Used in conjunction with Redis cache (DB is fallback).
func (r *SwipeRepository) CountAdmirers(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.admirers(ctx, userID).Count(&count).Error
	return count, err
}

func (r *SwipeRepository) admirers(ctx context.Context, userID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.swiped_id = ? AND s.direction = ?", userID, db.DirectionRight).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s2
				WHERE s2.swiper_id = ?
				  AND s2.swiped_id = s.swiper_id
			)`, userID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM profiles p
				WHERE p.user_id = s.swiper_id
				  AND p.status = ?
			)`, db.StatusBanned)
}

// DeleteForUser removes every swipe made by or on userID.
func (r *SwipeRepository) DeleteForUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("swiper_id = ? OR swiped_id = ?", userID, userID).
		Delete(&db.Swipe{}).Error
}

// RightSwipedIDs lists everyone userID swiped right on. Their admirer counts
// include userID.
func (r *SwipeRepository) RightSwipedIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("swiper_id = ? AND direction = ?", userID, db.DirectionRight).
		Pluck("swiped_id", &ids).Error
	return ids, err
}

// WithTx returns a copy bound to tx.
func (r *SwipeRepository) WithTx(tx *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: tx}
}
