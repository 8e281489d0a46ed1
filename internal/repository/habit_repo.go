package repository

import (
	"context"

	"habitpact/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HabitRepository struct {
	db *gorm.DB
}

func NewHabitRepository(db *gorm.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

func (r *HabitRepository) CreateCustom(ctx context.Context, h *models.CustomHabit) error {
	return r.db.WithContext(ctx).Create(h).Error
}

// GetActiveCustom returns a custom habit that is neither archived nor deleted.
func (r *HabitRepository) GetActiveCustom(ctx context.Context, id string) (*models.CustomHabit, error) {
	var h models.CustomHabit
	err := r.db.WithContext(ctx).Where("id = ? AND archived_at IS NULL", id).First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// FindActiveCustomByTitle matches the title exactly within one user's habits.
func (r *HabitRepository) FindActiveCustomByTitle(ctx context.Context, userID uint, title string) (*models.CustomHabit, error) {
	var h models.CustomHabit
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND title = ? AND archived_at IS NULL", userID, title).
		Order("created_at ASC").First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *HabitRepository) CountActiveCustom(ctx context.Context, userID uint) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.CustomHabit{}).
		Where("user_id = ? AND archived_at IS NULL", userID).Count(&c).Error
	return c, err
}

func (r *HabitRepository) ListActiveCustomByTitle(ctx context.Context, userID uint, title string) ([]models.CustomHabit, error) {
	var list []models.CustomHabit
	err := r.db.WithContext(ctx).Where("user_id = ? AND title = ? AND archived_at IS NULL", userID, title).Find(&list).Error
	return list, err
}

func (r *HabitRepository) DeleteCustom(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CustomHabit{}).Error
}

func (r *HabitRepository) UpdateCustom(ctx context.Context, h *models.CustomHabit) error {
	return r.db.WithContext(ctx).Save(h).Error
}

func (r *HabitRepository) ListEnabledCoreKeys(ctx context.Context, userID uint) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&models.CoreHabitEnrollment{}).
		Where("user_id = ?", userID).Pluck("habit_key", &keys).Error
	return keys, err
}

// EnableCore is a no-op when the key is already enabled.
func (r *HabitRepository) EnableCore(ctx context.Context, userID uint, key string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CoreHabitEnrollment{UserID: userID, HabitKey: key}).Error
}

func (r *HabitRepository) ListCoreSchedule(ctx context.Context, userID uint, key string) ([]models.CoreHabitSchedule, error) {
	var list []models.CoreHabitSchedule
	err := r.db.WithContext(ctx).Where("user_id = ? AND habit_key = ?", userID, key).Order("weekday ASC").Find(&list).Error
	return list, err
}

// UpsertCoreSchedule writes the weekday slots, replacing any existing slot for the same weekday.
func (r *HabitRepository) UpsertCoreSchedule(ctx context.Context, slots []models.CoreHabitSchedule) error {
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "habit_key"}, {Name: "weekday"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "reminder_time", "updated_at"}),
	}).Create(&slots).Error
}
