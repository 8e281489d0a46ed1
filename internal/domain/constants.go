package domain

import "time"

const (
	HabitTypeCore   = "core"
	HabitTypeCustom = "custom"
)

const (
	ModeSupportive  = "supportive"
	ModeCompetitive = "competitive"
)

const (
	PartnershipStatusPending   = "pending"
	PartnershipStatusAccepted  = "accepted"
	PartnershipStatusDeclined  = "declined"
	PartnershipStatusCancelled = "cancelled"
)

const (
	NotificationPartnerInvite   = "PARTNER_INVITE"
	NotificationPartnerAccepted = "PARTNER_ACCEPTED"
	NotificationPartnerNudge    = "PARTNER_NUDGE"
)

const (
	ProgressEventInsert = "INSERT"
	ProgressEventUpdate = "UPDATE"
	ProgressEventDelete = "DELETE"
)

// NudgeCooldown is the fixed window between two nudges on the same partnership.
const NudgeCooldown = 3 * time.Hour

// DateLayout is the calendar-day format used for progress rows.
const DateLayout = "2006-01-02"

// CustomHabitFallbackName is shown when a custom habit can no longer be resolved.
const CustomHabitFallbackName = "Custom Habit"

func IsTerminalStatus(status string) bool {
	return status == PartnershipStatusDeclined || status == PartnershipStatusCancelled
}

func ValidHabitType(t string) bool {
	return t == HabitTypeCore || t == HabitTypeCustom
}

func ValidMode(m string) bool {
	return m == ModeSupportive || m == ModeCompetitive
}
