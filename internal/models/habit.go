package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HabitDefinition holds every definitional field of a custom habit. It is the
// shape of partnership snapshots and the input for creating mirrored habits.
type HabitDefinition struct {
	OwnerID        uint   `json:"-"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Icon           string `json:"icon,omitempty"`
	Color          string `json:"color,omitempty"`
	Schedule       string `json:"schedule,omitempty"` // e.g. "daily" or "mon,wed,fri"
	TargetQuantity int    `json:"target_quantity,omitempty"`
	Unit           string `json:"unit,omitempty"`
	ReminderTime   string `json:"reminder_time,omitempty"` // HH:MM
	Timezone       string `json:"timezone,omitempty"`
}

// CustomHabit is a user-authored habit. Archived or deleted habits no longer resolve.
type CustomHabit struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Title          string         `gorm:"size:120;not null;index" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	Icon           string         `gorm:"size:64" json:"icon"`
	Color          string         `gorm:"size:16" json:"color"`
	Schedule       string         `gorm:"size:64" json:"schedule"`
	TargetQuantity int            `gorm:"not null;default:0" json:"target_quantity"`
	Unit           string         `gorm:"size:32" json:"unit"`
	ReminderTime   string         `gorm:"size:5" json:"reminder_time"`
	Timezone       string         `gorm:"size:64" json:"timezone"`
	ArchivedAt     *time.Time     `gorm:"index" json:"archived_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (CustomHabit) TableName() string {
	return "custom_habits"
}

func (h *CustomHabit) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

func (h *CustomHabit) Definition() HabitDefinition {
	return HabitDefinition{
		OwnerID:        h.UserID,
		Title:          h.Title,
		Description:    h.Description,
		Icon:           h.Icon,
		Color:          h.Color,
		Schedule:       h.Schedule,
		TargetQuantity: h.TargetQuantity,
		Unit:           h.Unit,
		ReminderTime:   h.ReminderTime,
		Timezone:       h.Timezone,
	}
}

// NewCustomHabit builds a habit for userID copying every field of def.
func NewCustomHabit(userID uint, def HabitDefinition) *CustomHabit {
	return &CustomHabit{
		UserID:         userID,
		Title:          def.Title,
		Description:    def.Description,
		Icon:           def.Icon,
		Color:          def.Color,
		Schedule:       def.Schedule,
		TargetQuantity: def.TargetQuantity,
		Unit:           def.Unit,
		ReminderTime:   def.ReminderTime,
		Timezone:       def.Timezone,
	}
}

// CoreHabitEnrollment marks a catalog habit as enabled for a user.
type CoreHabitEnrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_core_enrollment,unique" json:"user_id"`
	HabitKey  string    `gorm:"size:64;not null;index:idx_core_enrollment,unique" json:"habit_key"`
	CreatedAt time.Time `json:"created_at"`
}

func (CoreHabitEnrollment) TableName() string {
	return "core_habit_enrollments"
}

// CoreHabitSchedule is one weekday slot of a user's schedule for a core habit.
type CoreHabitSchedule struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index:idx_core_schedule,unique" json:"user_id"`
	HabitKey     string    `gorm:"size:64;not null;index:idx_core_schedule,unique" json:"habit_key"`
	Weekday      int       `gorm:"not null;index:idx_core_schedule,unique" json:"weekday"` // 0 = Sunday
	Enabled      bool      `gorm:"not null" json:"enabled"`
	ReminderTime string    `gorm:"size:5" json:"reminder_time"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (CoreHabitSchedule) TableName() string {
	return "core_habit_schedules"
}
