package repository

import (
	"context"
	"errors"
	"time"

	"habitpact/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NudgeRepository struct {
	db *gorm.DB
}

func NewNudgeRepository(db *gorm.DB) *NudgeRepository {
	return &NudgeRepository{db: db}
}

// Latest returns the most recent nudge for a partnership, or nil.
func (r *NudgeRepository) Latest(ctx context.Context, partnershipID string) (*models.Nudge, error) {
	return latestNudge(r.db.WithContext(ctx), partnershipID)
}

func latestNudge(db *gorm.DB, partnershipID string) (*models.Nudge, error) {
	var n models.Nudge
	err := db.Where("partnership_id = ?", partnershipID).Order("nudged_at DESC").Order("id DESC").First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// LatestTimes returns the last nudge time for each partnership that has one.
func (r *NudgeRepository) LatestTimes(ctx context.Context, partnershipIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(partnershipIDs))
	if len(partnershipIDs) == 0 {
		return out, nil
	}
	var list []models.Nudge
	err := r.db.WithContext(ctx).
		Select("partnership_id", "nudged_at").
		Where("partnership_id IN ?", partnershipIDs).
		Order("nudged_at DESC").Find(&list).Error
	if err != nil {
		return nil, err
	}
	for _, n := range list {
		if _, ok := out[n.PartnershipID]; !ok {
			out[n.PartnershipID] = n.NudgedAt
		}
	}
	return out, nil
}

// AppendIfCooledDown locks the partnership row, and appends n only when the latest
// nudge is older than window relative to n.NudgedAt. When the cooldown is still active
// it returns the blocking nudge and appends nothing.
func (r *NudgeRepository) AppendIfCooledDown(ctx context.Context, n *models.Nudge, window time.Duration) (*models.Nudge, error) {
	var blocking *models.Nudge
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Partnership
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").Where("id = ?", n.PartnershipID).First(&p).Error; err != nil {
			return err
		}
		last, err := latestNudge(tx, n.PartnershipID)
		if err != nil {
			return err
		}
		if last != nil && n.NudgedAt.Sub(last.NudgedAt) < window {
			blocking = last
			return nil
		}
		return tx.Create(n).Error
	})
	if err != nil {
		return nil, err
	}
	return blocking, nil
}
