package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is the in-app inbox copy of every dispatched partner notification.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Kind      string         `gorm:"size:50;not null;index" json:"kind"`
	Title     string         `gorm:"size:255" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	Payload   datatypes.JSON `json:"payload"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}
