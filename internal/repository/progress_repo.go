package repository

import (
	"context"
	"errors"

	"habitpact/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the row for the key or nil when absent.
func (r *ProgressRepository) Get(ctx context.Context, partnershipID string, userID uint, date string) (*models.PartnerProgress, error) {
	var p models.PartnerProgress
	err := r.db.WithContext(ctx).
		Where("partnership_id = ? AND user_id = ? AND progress_date = ?", partnershipID, userID, date).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert writes the row keyed by (partnership_id, user_id, progress_date); last write wins.
func (r *ProgressRepository) Upsert(ctx context.Context, p *models.PartnerProgress) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "partnership_id"}, {Name: "user_id"}, {Name: "progress_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "streak_count", "updated_at"}),
	}).Create(p).Error
}

func (r *ProgressRepository) Delete(ctx context.Context, partnershipID string, userID uint, date string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("partnership_id = ? AND user_id = ? AND progress_date = ?", partnershipID, userID, date).
		Delete(&models.PartnerProgress{})
	return res.RowsAffected > 0, res.Error
}

func (r *ProgressRepository) Count(ctx context.Context, partnershipID string, userID uint) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.PartnerProgress{}).
		Where("partnership_id = ? AND user_id = ?", partnershipID, userID).Count(&c).Error
	return c, err
}
