package models

import "time"

// PartnerProgress is one user's completion state for one partnership on one calendar day.
type PartnerProgress struct {
	PartnershipID string    `gorm:"primaryKey;size:36" json:"partnership_id"`
	UserID        uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Date          string    `gorm:"column:progress_date;primaryKey;size:10" json:"date"` // YYYY-MM-DD, timezone-naive
	Completed     bool      `gorm:"not null;default:false" json:"completed"`
	StreakCount   int       `gorm:"not null;default:0" json:"streak_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (PartnerProgress) TableName() string {
	return "partner_progress"
}

// ProgressState is the read model returned for a (partnership, user, date) key.
type ProgressState struct {
	Completed bool `json:"completed"`
	Streak    int  `json:"streak"`
}

// Nudge is an append-only log of reminders sent between partners.
type Nudge struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PartnershipID string    `gorm:"size:36;not null;index:idx_nudge_partnership_time,priority:1" json:"partnership_id"`
	NudgerID      uint      `gorm:"not null;index" json:"nudger_id"`
	NudgedUserID  uint      `gorm:"not null;index" json:"nudged_user_id"`
	HabitType     string    `gorm:"size:10;not null" json:"habit_type"`
	HabitKey      *string   `gorm:"size:64" json:"habit_key,omitempty"`
	CustomHabitID *string   `gorm:"size:36" json:"custom_habit_id,omitempty"`
	NudgedAt      time.Time `gorm:"not null;index:idx_nudge_partnership_time,priority:2" json:"nudged_at"`
}

func (Nudge) TableName() string {
	return "nudges"
}
