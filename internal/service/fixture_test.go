package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"habitpact/internal/catalog"
	"habitpact/internal/database/dbtest"
	"habitpact/internal/logging"
	"habitpact/internal/models"
	"habitpact/internal/realtime"
	"habitpact/internal/repository"
	"habitpact/internal/service"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type dispatched struct {
	UserID  uint
	Kind    string
	Payload map[string]interface{}
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []dispatched
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, userID uint, kind string, payload map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, dispatched{UserID: userID, Kind: kind, Payload: payload})
	return d.err
}

func (d *recordingDispatcher) count(userID uint, kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.sent {
		if s.UserID == userID && s.Kind == kind {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	db           *gorm.DB
	users        *repository.UserRepository
	habits       *repository.HabitRepository
	partnerships *repository.PartnershipRepository
	catalog      *catalog.Catalog
	notify       *recordingDispatcher
	feed         *realtime.Feed
	clock        *fakeClock

	lifecycle *service.PartnershipService
	progress  *service.ProgressService
	nudges    *service.NudgeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{
		db:           db,
		users:        repository.NewUserRepository(db),
		habits:       repository.NewHabitRepository(db),
		partnerships: repository.NewPartnershipRepository(db),
		notify:       &recordingDispatcher{},
		feed:         realtime.NewFeed(),
		clock:        &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	f.catalog = catalog.New(f.habits)
	f.build(f.catalog)
	return f
}

// build wires the services over the given habit catalog.
func (f *fixture) build(habits service.HabitCatalog) {
	log := logging.Discard()
	mirror := service.NewMirrorService(habits, log)
	f.lifecycle = service.NewPartnershipService(f.partnerships, f.users, habits, mirror, f.notify, log).WithClock(f.clock.Now)
	f.progress = service.NewProgressService(repository.NewProgressRepository(f.db), f.partnerships, f.feed, realtime.NewLocalBroker(f.feed), log).WithClock(f.clock.Now)
	f.nudges = service.NewNudgeService(repository.NewNudgeRepository(f.db), f.partnerships, f.notify, log).WithClock(f.clock.Now)
}

func (f *fixture) user(t *testing.T, username string) uint {
	t.Helper()
	u := &models.User{Username: username, DisplayName: username + " display"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u.ID
}

func (f *fixture) customHabit(t *testing.T, owner uint, def models.HabitDefinition) string {
	t.Helper()
	id, err := f.catalog.CreateCustomHabit(context.Background(), owner, def)
	require.NoError(t, err)
	return id
}

func (f *fixture) countHabitsTitled(t *testing.T, owner uint, title string) int {
	t.Helper()
	list, err := f.habits.ListActiveCustomByTitle(context.Background(), owner, title)
	require.NoError(t, err)
	return len(list)
}

func (f *fixture) acceptedPair(t *testing.T) (*models.Partnership, uint, uint) {
	t.Helper()
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{
		InviterID: a, InviteeID: b, HabitType: "core", Identifier: "water", Mode: "supportive",
	})
	require.NoError(t, err)
	p, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)
	return p, a, b
}

var coldPlunge = models.HabitDefinition{
	Title:          "Cold Plunge",
	Description:    "Three minutes under 10C",
	Icon:           "snowflake",
	Color:          "#3BA0FF",
	Schedule:       "daily",
	TargetQuantity: 3,
	Unit:           "minutes",
	ReminderTime:   "07:00",
	Timezone:       "Europe/Oslo",
}
