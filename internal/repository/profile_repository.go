package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/campus-match/internal/db"
)

// ProfileRepository provides data access for profiles and their moderation state.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// WithTx returns a copy bound to tx.
func (r *ProfileRepository) WithTx(tx *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

// Get loads a profile by user id. Returns gorm.ErrRecordNotFound when absent.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Find is Get that maps a missing row to (nil, nil).
func (r *ProfileRepository) Find(ctx context.Context, userID string) (*db.Profile, error) {
	p, err := r.Get(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return p, err
}

// ListByIDs loads the profiles of ids keyed by user id. Missing ids are omitted.
func (r *ProfileRepository) ListByIDs(ctx context.Context, ids []string) (map[string]*db.Profile, error) {
	out := make(map[string]*db.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []db.Profile
	if err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for i := range profiles {
		out[profiles[i].UserID] = &profiles[i]
	}
	return out, nil
}

// Save writes p only if the stored row still has the status it was read with.
//
// Behavior:
//   - from == "" → first submission; inserted unless a row already exists.
//   - Otherwise every column is overwritten WHERE user_id = ? AND status = from.
//   - Returns false when nothing was written, e.g. a ban committed after the read.
//
// Example:
//
//	ok, err := repo.Save(ctx, edited, db.StatusApproved)
func (r *ProfileRepository) Save(ctx context.Context, p *db.Profile, from db.ProfileStatus) (bool, error) {
	if from == "" {
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(p)
		return res.RowsAffected == 1, res.Error
	}

	res := r.db.WithContext(ctx).
		Model(p).
		Where("status = ?", from).
		Select("*").
		Updates(p)
	return res.RowsAffected == 1, res.Error
}

// CandidateQuery selects the swipe queue for one requester.
type CandidateQuery struct {
	Requester *db.Profile
	AfterID   string
	Limit     int
}

// ListCandidates returns approved profiles the requester has not swiped yet.
//
// Behavior:
//   - Excludes the requester and every id they swiped (either direction).
//   - Applies bidirectional gender compatibility unless the requester has no
//     gender or no preference.
//   - Ordered by user_id ASC; AfterID continues a previous page.
//
// Example:
//
//	repo.ListCandidates(ctx, CandidateQuery{Requester: me, Limit: 50})
func (r *ProfileRepository) ListCandidates(ctx context.Context, q CandidateQuery) ([]db.Profile, error) {
	req := q.Requester
	query := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("status = ?", db.StatusApproved).
		Where("user_id <> ?", req.UserID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s
				WHERE s.swiper_id = ?
				  AND s.swiped_id = profiles.user_id
			)`, req.UserID)

	if req.Gender != "" && req.PreferredGender != "" {
		if req.PreferredGender != db.PreferenceEveryone {
			query = query.Where("gender = ?", req.PreferredGender)
		}
		query = query.Where("(preferred_gender = ? OR preferred_gender = ?)", db.PreferenceEveryone, req.Gender)
	}

	if q.AfterID != "" {
		query = query.Where("user_id > ?", q.AfterID)
	}

	var profiles []db.Profile
	if err := query.Order("user_id ASC").Limit(q.Limit).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return profiles, nil
}

// ListByStatus pages through profiles in one moderation state, oldest submission first.
func (r *ProfileRepository) ListByStatus(ctx context.Context, status db.ProfileStatus, limit int) ([]db.Profile, error) {
	var profiles []db.Profile
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("submitted_at ASC, user_id ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

// Review moves a profile out of pending.
//
// Behavior:
//   - Conditional on status = pending; returns false when the row was in another state.
func (r *ProfileRepository) Review(
	ctx context.Context,
	userID string,
	to db.ProfileStatus,
	reviewerID, reason string,
	now time.Time,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ? AND status = ?", userID, db.StatusPending).
		Updates(map[string]any{
			"status":        to,
			"reviewed_at":   now,
			"reviewed_by":   reviewerID,
			"reject_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkBanned sets the terminal banned state. Returns false when the profile does not exist.
func (r *ProfileRepository) MarkBanned(ctx context.Context, userID, adminID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"status":      db.StatusBanned,
			"reviewed_at": now,
			"reviewed_by": adminID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LockStatuses reads the moderation state of ids with SELECT ... FOR UPDATE.
// Call it inside a transaction; rows are locked in user_id order. Missing ids
// are omitted.
func (r *ProfileRepository) LockStatuses(ctx context.Context, ids ...string) (map[string]db.ProfileStatus, error) {
	var rows []struct {
		UserID string
		Status db.ProfileStatus
	}
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("user_id, status").
		Where("user_id IN ?", ids).
		Order("user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]db.ProfileStatus, len(rows))
	for _, row := range rows {
		out[row.UserID] = row.Status
	}
	return out, nil
}

// Nicknames maps user ids to their live nicknames. Missing ids are omitted.
func (r *ProfileRepository) Nicknames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		UserID   string
		Nickname string
	}
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Select("user_id, nickname").
		Where("user_id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.UserID] = row.Nickname
	}
	return out, nil
}

// IsBanned reports the ban state of userID. Unknown users are not banned.
func (r *ProfileRepository) IsBanned(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("user_id = ? AND status = ?", userID, db.StatusBanned).
		Count(&count).Error
	return count > 0, err
}

// Delete removes the profile row only.
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&db.Profile{}).Error
}
