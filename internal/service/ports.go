package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habitpact/internal/domain"
	"habitpact/internal/models"

	"gorm.io/gorm"
)

// HabitCatalog resolves and provisions habits on behalf of the partnership engine.
type HabitCatalog interface {
	ResolveCoreHabitName(key string) string
	GetCustomHabitDefinition(ctx context.Context, ref string) (*models.HabitDefinition, error)
	UserHasAnyCustomHabit(ctx context.Context, userID uint) (bool, error)
	ListEnabledCoreHabits(ctx context.Context, userID uint) (map[string]struct{}, error)
	EnableCoreHabit(ctx context.Context, userID uint, key string) error
	CopySchedule(ctx context.Context, fromUser, toUser uint, key string) error
	CreateCustomHabit(ctx context.Context, userID uint, def models.HabitDefinition) (string, error)
	FindCustomHabitByTitle(ctx context.Context, userID uint, title string) (string, error)
}

// Dispatcher delivers a typed notification. Callers treat it as best effort.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID uint, kind string, payload map[string]interface{}) error
}

// Clock returns the current time; tests swap it for a movable one.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// storeErr maps persistence errors onto the domain taxonomy.
func storeErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
