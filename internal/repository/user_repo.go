package repository

import (
	"context"

	"habitpact/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListSummariesByIDs loads the public profiles of all ids in a single query.
// Unknown ids are simply absent from the returned map.
func (r *UserRepository) ListSummariesByIDs(ctx context.Context, ids []uint) (map[uint]models.ProfileSummary, error) {
	out := make(map[uint]models.ProfileSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}
	return out, nil
}

func (r *UserRepository) UpdateFCMToken(ctx context.Context, userID uint, token string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", token).Error
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, userID uint, url string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("avatar_url", url).Error
}
