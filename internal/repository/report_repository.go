package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/db"
)

// ReportRepository stores abuse reports. Duplicates of the same pair are allowed.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

func (r *ReportRepository) WithTx(tx *gorm.DB) *ReportRepository {
	return &ReportRepository{db: tx}
}

func (r *ReportRepository) Create(ctx context.Context, rep *db.Report) error {
	return r.db.WithContext(ctx).Create(rep).Error
}

func (r *ReportRepository) Get(ctx context.Context, id string) (*db.Report, error) {
	var rep db.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rep).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

// List returns the newest reports first.
func (r *ReportRepository) List(ctx context.Context, limit int) ([]db.Report, error) {
	var reports []db.Report
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}

// Delete removes one report and reports whether it existed.
func (r *ReportRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&db.Report{})
	return res.RowsAffected == 1, res.Error
}

// DeleteForUser removes reports filed by or against userID.
func (r *ReportRepository) DeleteForUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("reporter_id = ? OR reported_id = ?", userID, userID).
		Delete(&db.Report{}).Error
}
