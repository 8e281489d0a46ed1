package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"uniqueIndex;size:64;not null" json:"username"`
	DisplayName string         `gorm:"size:100" json:"display_name"`
	AvatarURL   string         `gorm:"size:512" json:"avatar_url"`
	FCMToken    string         `gorm:"size:512" json:"-"` // For push notifications
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// ProfileSummary is the public view of a partner shown next to a partnership.
type ProfileSummary struct {
	ID          uint   `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func (u *User) Summary() ProfileSummary {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return ProfileSummary{
		ID:          u.ID,
		Handle:      u.Username,
		DisplayName: name,
		AvatarURL:   u.AvatarURL,
	}
}
