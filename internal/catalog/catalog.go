// Package catalog resolves habits for the partnership engine: the fixed core
// habit table and the per-user custom habit records.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"habitpact/internal/domain"
	"habitpact/internal/models"
	"habitpact/internal/repository"

	"gorm.io/gorm"
)

// coreHabits is the application-defined catalog, keyed by short habit key.
var coreHabits = map[string]string{
	"water":      "Drink Water",
	"exercise":   "Exercise",
	"read":       "Read",
	"meditate":   "Meditate",
	"sleep":      "Sleep 8 Hours",
	"journal":    "Journal",
	"walk":       "Daily Walk",
	"no_sugar":   "No Added Sugar",
	"stretch":    "Stretch",
	"screen_off": "Screens Off Before Bed",
}

// ResolveCoreHabitName returns the display name for key; unknown keys echo back.
func ResolveCoreHabitName(key string) string {
	if name, ok := coreHabits[key]; ok {
		return name
	}
	return key
}

// IsCoreHabit reports whether key is in the core catalog.
func IsCoreHabit(key string) bool {
	_, ok := coreHabits[key]
	return ok
}

// Catalog implements the habit catalog over the application database.
type Catalog struct {
	habits *repository.HabitRepository
}

func New(habits *repository.HabitRepository) *Catalog {
	return &Catalog{habits: habits}
}

func (c *Catalog) ResolveCoreHabitName(key string) string {
	return ResolveCoreHabitName(key)
}

func (c *Catalog) GetCustomHabitDefinition(ctx context.Context, ref string) (*models.HabitDefinition, error) {
	h, err := c.habits.GetActiveCustom(ctx, ref)
	if err != nil {
		return nil, translate(err)
	}
	def := h.Definition()
	return &def, nil
}

func (c *Catalog) UserHasAnyCustomHabit(ctx context.Context, userID uint) (bool, error) {
	n, err := c.habits.CountActiveCustom(ctx, userID)
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (c *Catalog) ListEnabledCoreHabits(ctx context.Context, userID uint) (map[string]struct{}, error) {
	keys, err := c.habits.ListEnabledCoreKeys(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

func (c *Catalog) EnableCoreHabit(ctx context.Context, userID uint, key string) error {
	return translate(c.habits.EnableCore(ctx, userID, key))
}

// CopySchedule copies fromUser's weekday slots for key onto toUser. A missing
// source schedule is not an error.
func (c *Catalog) CopySchedule(ctx context.Context, fromUser, toUser uint, key string) error {
	src, err := c.habits.ListCoreSchedule(ctx, fromUser, key)
	if err != nil {
		return translate(err)
	}
	if len(src) == 0 {
		return nil
	}
	slots := make([]models.CoreHabitSchedule, 0, len(src))
	for _, s := range src {
		slots = append(slots, models.CoreHabitSchedule{
			UserID:       toUser,
			HabitKey:     key,
			Weekday:      s.Weekday,
			Enabled:      s.Enabled,
			ReminderTime: s.ReminderTime,
		})
	}
	return translate(c.habits.UpsertCoreSchedule(ctx, slots))
}

func (c *Catalog) CreateCustomHabit(ctx context.Context, userID uint, def models.HabitDefinition) (string, error) {
	if strings.TrimSpace(def.Title) == "" {
		return "", fmt.Errorf("custom habit title: %w", domain.ErrInvalidInput)
	}
	h := models.NewCustomHabit(userID, def)
	if err := c.habits.CreateCustom(ctx, h); err != nil {
		return "", translate(err)
	}
	return h.ID, nil
}

func (c *Catalog) FindCustomHabitByTitle(ctx context.Context, userID uint, title string) (string, error) {
	h, err := c.habits.FindActiveCustomByTitle(ctx, userID, title)
	if err != nil {
		return "", translate(err)
	}
	return h.ID, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrHabitNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}
