package repository

import (
	"context"

	"habitpact/internal/domain"
	"habitpact/internal/models"

	"gorm.io/gorm"
)

type PartnershipRepository struct {
	db *gorm.DB
}

func NewPartnershipRepository(db *gorm.DB) *PartnershipRepository {
	return &PartnershipRepository{db: db}
}

func (r *PartnershipRepository) Create(ctx context.Context, p *models.Partnership) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PartnershipRepository) GetByID(ctx context.Context, id string) (*models.Partnership, error) {
	var p models.Partnership
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByTuple looks a partnership up by its uniqueness tuple.
func (r *PartnershipRepository) FindByTuple(ctx context.Context, inviterID, inviteeID uint, habitType, identifier string) (*models.Partnership, error) {
	var p models.Partnership
	err := r.db.WithContext(ctx).
		Where("inviter_id = ? AND invitee_id = ? AND habit_type = ? AND habit_identifier = ?", inviterID, inviteeID, habitType, identifier).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Transition moves the row to status `to` only if it is currently in one of `from`.
// It reports whether this call performed the change.
func (r *PartnershipRepository) Transition(ctx context.Context, id string, from []string, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).Model(&models.Partnership{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PartnershipRepository) SetInviteeHabitRef(ctx context.Context, id, ref string) error {
	return r.db.WithContext(ctx).Model(&models.Partnership{}).Where("id = ?", id).Update("invitee_habit_ref", ref).Error
}

// ListPendingForInvitee returns invites waiting on userID, newest first.
func (r *PartnershipRepository) ListPendingForInvitee(ctx context.Context, userID uint) ([]models.Partnership, error) {
	var list []models.Partnership
	err := r.db.WithContext(ctx).
		Where("invitee_id = ? AND status = ?", userID, domain.PartnershipStatusPending).
		Order("created_at DESC").Find(&list).Error
	return list, err
}

// ListAcceptedForUser returns active partnerships where userID is on either side.
func (r *PartnershipRepository) ListAcceptedForUser(ctx context.Context, userID uint) ([]models.Partnership, error) {
	var list []models.Partnership
	err := r.db.WithContext(ctx).
		Where("(inviter_id = ? OR invitee_id = ?) AND status = ?", userID, userID, domain.PartnershipStatusAccepted).
		Order("accepted_at DESC").Find(&list).Error
	return list, err
}

// ListSentByInviter returns every invite userID has sent, any status.
func (r *PartnershipRepository) ListSentByInviter(ctx context.Context, userID uint) ([]models.Partnership, error) {
	var list []models.Partnership
	err := r.db.WithContext(ctx).Where("inviter_id = ?", userID).Order("created_at DESC").Find(&list).Error
	return list, err
}
