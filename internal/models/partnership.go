package models

import (
	"encoding/json"
	"time"

	"habitpact/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Partnership pairs two users around one shared habit. Rows are never deleted;
// declined and cancelled are soft terminal markers that a re-invite can revive.
type Partnership struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	InviterID uint   `gorm:"not null;index;uniqueIndex:idx_partnership_tuple,priority:1" json:"inviter_id"`
	InviteeID uint   `gorm:"not null;index;uniqueIndex:idx_partnership_tuple,priority:2" json:"invitee_id"`
	HabitType string `gorm:"size:10;not null;uniqueIndex:idx_partnership_tuple,priority:3" json:"habit_type"` // core | custom
	// HabitIdentifier is habit_key for core habits and inviter_habit_ref for custom ones.
	HabitIdentifier string         `gorm:"size:64;not null;uniqueIndex:idx_partnership_tuple,priority:4" json:"-"`
	HabitKey        *string        `gorm:"size:64" json:"habit_key,omitempty"`
	InviterHabitRef *string        `gorm:"size:36;index" json:"inviter_habit_ref,omitempty"`
	InviteeHabitRef *string        `gorm:"size:36;index" json:"invitee_habit_ref,omitempty"`
	HabitSnapshot   datatypes.JSON `json:"habit_snapshot,omitempty"`
	Mode            string         `gorm:"size:20;not null" json:"mode"`
	Status          string         `gorm:"size:20;not null;index" json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	AcceptedAt      *time.Time     `json:"accepted_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Partnership) TableName() string {
	return "partnerships"
}

func (p *Partnership) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Partnership) IsPending() bool  { return p.Status == domain.PartnershipStatusPending }
func (p *Partnership) IsAccepted() bool { return p.Status == domain.PartnershipStatusAccepted }
func (p *Partnership) IsCustom() bool   { return p.HabitType == domain.HabitTypeCustom }

func (p *Partnership) IsParticipant(userID uint) bool {
	return userID != 0 && (p.InviterID == userID || p.InviteeID == userID)
}

// CounterpartID returns the other participant, or 0 if userID is not part of the partnership.
func (p *Partnership) CounterpartID(userID uint) uint {
	switch userID {
	case p.InviterID:
		return p.InviteeID
	case p.InviteeID:
		return p.InviterID
	}
	return 0
}

// HabitRefFor returns the custom habit reference that belongs to userID's side.
// The invitee falls back to the inviter's reference until a mirror exists.
func (p *Partnership) HabitRefFor(userID uint) string {
	if userID == p.InviteeID && p.InviteeHabitRef != nil && *p.InviteeHabitRef != "" {
		return *p.InviteeHabitRef
	}
	if p.InviterHabitRef != nil {
		return *p.InviterHabitRef
	}
	return ""
}

// Snapshot decodes the captured habit definition. It returns nil when none was captured.
func (p *Partnership) Snapshot() (*HabitDefinition, error) {
	if len(p.HabitSnapshot) == 0 || string(p.HabitSnapshot) == "null" {
		return nil, nil
	}
	var def HabitDefinition
	if err := json.Unmarshal(p.HabitSnapshot, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (p *Partnership) SetSnapshot(def *HabitDefinition) error {
	if def == nil {
		p.HabitSnapshot = nil
		return nil
	}
	b, err := json.Marshal(def)
	if err != nil {
		return err
	}
	p.HabitSnapshot = datatypes.JSON(b)
	return nil
}

// PartnershipView is a partnership enriched for one viewer.
type PartnershipView struct {
	Partnership
	HabitName string         `json:"habit_name"`
	Partner   ProfileSummary `json:"partner"`
}
