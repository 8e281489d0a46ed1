package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidInput        = errors.New("invalid input")

	// ErrHabitNotFound is returned by the habit catalog when a reference no longer resolves.
	ErrHabitNotFound = fmt.Errorf("habit %w", ErrNotFound)
)

// RateLimitError reports an active nudge cooldown. It matches ErrRateLimited.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "You already nudged your partner. You can nudge again in " + FormatCooldown(e.RetryAfter) + "."
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// FormatCooldown renders a remaining duration as "2h 15m" (minimum "1m").
func FormatCooldown(d time.Duration) string {
	if d < time.Minute {
		d = time.Minute
	}
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
