package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"habitpact/internal/domain"
	"habitpact/internal/models"
	"habitpact/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendInviteIsIdempotentWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	req := service.InviteRequest{InviterID: a, InviteeID: b, HabitType: domain.HabitTypeCore, Identifier: "read", Mode: domain.ModeSupportive}

	first, err := f.lifecycle.SendInvite(ctx, req)
	require.NoError(t, err)
	second, err := f.lifecycle.SendInvite(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.PartnershipStatusPending, second.Status)
	assert.Equal(t, 1, f.notify.count(b, domain.NotificationPartnerInvite))
}

func TestSendInviteValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")

	cases := []service.InviteRequest{
		{InviterID: a, InviteeID: a, HabitType: "core", Identifier: "read", Mode: "supportive"},
		{InviterID: a, InviteeID: b, HabitType: "weekly", Identifier: "read", Mode: "supportive"},
		{InviterID: a, InviteeID: b, HabitType: "core", Identifier: "read", Mode: "friendly"},
		{InviterID: a, InviteeID: b, HabitType: "core", Identifier: " ", Mode: "supportive"},
	}
	for _, req := range cases {
		_, err := f.lifecycle.SendInvite(ctx, req)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestSendInviteRejectsSomeoneElsesHabit(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habit := f.customHabit(t, b, coldPlunge)

	_, err := f.lifecycle.SendInvite(context.Background(), service.InviteRequest{
		InviterID: a, InviteeID: b, HabitType: domain.HabitTypeCustom, Identifier: habit, Mode: domain.ModeSupportive,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestReinviteRevivesSameRowWithFreshSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habitID := f.customHabit(t, a, coldPlunge)
	req := service.InviteRequest{InviterID: a, InviteeID: b, HabitType: domain.HabitTypeCustom, Identifier: habitID, Mode: domain.ModeSupportive}

	original, err := f.lifecycle.SendInvite(ctx, req)
	require.NoError(t, err)
	require.NoError(t, f.lifecycle.DeclineInvite(ctx, original.ID, b))

	// Inviter edits the habit before inviting again.
	h, err := f.habits.GetActiveCustom(ctx, habitID)
	require.NoError(t, err)
	h.Title = "Ice Bath"
	h.TargetQuantity = 5
	require.NoError(t, f.habits.UpdateCustom(ctx, h))

	f.clock.Advance(48 * time.Hour)
	req.Mode = domain.ModeCompetitive
	revived, err := f.lifecycle.SendInvite(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, original.ID, revived.ID)
	assert.Equal(t, domain.PartnershipStatusPending, revived.Status)
	assert.Equal(t, domain.ModeCompetitive, revived.Mode)
	assert.True(t, revived.CreatedAt.After(original.CreatedAt))
	snap, err := revived.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "Ice Bath", snap.Title)
	assert.Equal(t, 5, snap.TargetQuantity)
	assert.Equal(t, 2, f.notify.count(b, domain.NotificationPartnerInvite))
}

func TestRoleGatedTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "core", Identifier: "walk", Mode: "supportive"})
	require.NoError(t, err)

	_, err = f.lifecycle.AcceptInvite(ctx, p.ID, a)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.lifecycle.AcceptInvite(ctx, p.ID, c)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.ErrorIs(t, f.lifecycle.CancelInvite(ctx, p.ID, b), domain.ErrForbidden)
	assert.ErrorIs(t, f.lifecycle.DeclineInvite(ctx, p.ID, a), domain.ErrForbidden)
	assert.ErrorIs(t, f.lifecycle.RemovePartnership(ctx, p.ID, c), domain.ErrForbidden)

	_, err = f.lifecycle.AcceptInvite(ctx, "missing", b)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.partnerships.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PartnershipStatusPending, got.Status)
}

func TestTerminalTransitionsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "core", Identifier: "walk", Mode: "supportive"})
	require.NoError(t, err)

	require.NoError(t, f.lifecycle.CancelInvite(ctx, p.ID, a))
	require.NoError(t, f.lifecycle.CancelInvite(ctx, p.ID, a))

	got, err := f.partnerships.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PartnershipStatusCancelled, got.Status)

	_, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRemoveOnlyEndsAcceptedPartnerships(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "core", Identifier: "stretch", Mode: "supportive"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.lifecycle.RemovePartnership(ctx, p.ID, a), domain.ErrInvalidTransition)

	_, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)
	assert.ErrorIs(t, f.lifecycle.DeclineInvite(ctx, p.ID, b), domain.ErrInvalidTransition)

	require.NoError(t, f.lifecycle.RemovePartnership(ctx, p.ID, b))
	require.NoError(t, f.lifecycle.RemovePartnership(ctx, p.ID, a))
	got, err := f.partnerships.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PartnershipStatusCancelled, got.Status)
}

func TestAcceptTwiceMirrorsCustomHabitOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habitID := f.customHabit(t, a, coldPlunge)
	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "custom", Identifier: habitID, Mode: "supportive"})
	require.NoError(t, err)

	first, err := f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)
	second, err := f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)

	assert.Equal(t, 1, f.countHabitsTitled(t, b, "Cold Plunge"))
	require.NotNil(t, first.InviteeHabitRef)
	require.NotNil(t, second.InviteeHabitRef)
	assert.Equal(t, *first.InviteeHabitRef, *second.InviteeHabitRef)
	assert.Equal(t, 1, f.notify.count(a, domain.NotificationPartnerAccepted))
}

func TestAcceptReusesInviteeHabitWithSameTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habitID := f.customHabit(t, a, coldPlunge)
	existing := f.customHabit(t, b, models.HabitDefinition{Title: "Cold Plunge"})

	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "custom", Identifier: habitID, Mode: "supportive"})
	require.NoError(t, err)
	p, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)

	require.NotNil(t, p.InviteeHabitRef)
	assert.Equal(t, existing, *p.InviteeHabitRef)
	assert.Equal(t, 1, f.countHabitsTitled(t, b, "Cold Plunge"))
}

func TestAcceptFallsBackToSnapshotWhenInviterHabitDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habitID := f.customHabit(t, a, coldPlunge)
	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "custom", Identifier: habitID, Mode: "competitive"})
	require.NoError(t, err)

	require.NoError(t, f.habits.DeleteCustom(ctx, habitID))

	p, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)
	assert.Equal(t, domain.PartnershipStatusAccepted, p.Status)
	require.NotNil(t, p.InviteeHabitRef)

	mirrored, err := f.habits.GetActiveCustom(ctx, *p.InviteeHabitRef)
	require.NoError(t, err)
	assert.Equal(t, b, mirrored.UserID)
	assert.Equal(t, coldPlunge.Title, mirrored.Title)
	assert.Equal(t, coldPlunge.TargetQuantity, mirrored.TargetQuantity)
	assert.Equal(t, coldPlunge.Timezone, mirrored.Timezone)
}

func TestRepeatInviteSurvivesDeletedSourceHabit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habitID := f.customHabit(t, a, coldPlunge)
	req := service.InviteRequest{InviterID: a, InviteeID: b, HabitType: domain.HabitTypeCustom, Identifier: habitID, Mode: domain.ModeSupportive}

	pending, err := f.lifecycle.SendInvite(ctx, req)
	require.NoError(t, err)
	require.NoError(t, f.habits.DeleteCustom(ctx, habitID))

	again, err := f.lifecycle.SendInvite(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, again.ID)
	assert.Equal(t, domain.PartnershipStatusPending, again.Status)

	_, err = f.lifecycle.AcceptInvite(ctx, pending.ID, b)
	require.NoError(t, err)

	again, err = f.lifecycle.SendInvite(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, again.ID)
	assert.Equal(t, domain.PartnershipStatusAccepted, again.Status)
	assert.Equal(t, 1, f.notify.count(b, domain.NotificationPartnerInvite))
}

func TestAcceptSucceedsWhenMirroringHasNoSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habitID := f.customHabit(t, a, coldPlunge)
	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "custom", Identifier: habitID, Mode: "supportive"})
	require.NoError(t, err)

	require.NoError(t, f.habits.DeleteCustom(ctx, habitID))
	require.NoError(t, f.db.Model(&models.Partnership{}).Where("id = ?", p.ID).Update("habit_snapshot", nil).Error)

	p, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)
	assert.Equal(t, domain.PartnershipStatusAccepted, p.Status)
	assert.Nil(t, p.InviteeHabitRef)
	assert.Equal(t, 1, f.notify.count(a, domain.NotificationPartnerAccepted))
}

type flakyCatalog struct {
	service.HabitCatalog
}

func (flakyCatalog) FindCustomHabitByTitle(context.Context, uint, string) (string, error) {
	return "", errors.Join(domain.ErrUpstreamUnavailable, errors.New("catalog timeout"))
}

func TestAcceptSurvivesUpstreamFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habitID := f.customHabit(t, a, coldPlunge)
	f.build(flakyCatalog{HabitCatalog: f.catalog})
	f.notify.err = domain.ErrUpstreamUnavailable

	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "custom", Identifier: habitID, Mode: "supportive"})
	require.NoError(t, err)
	p, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)

	assert.Equal(t, domain.PartnershipStatusAccepted, p.Status)
	assert.NotNil(t, p.AcceptedAt)
	assert.Equal(t, 0, f.countHabitsTitled(t, b, "Cold Plunge"))
}

func TestAcceptCoreHabitEnablesAndCopiesSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	require.NoError(t, f.catalog.EnableCoreHabit(ctx, a, "meditate"))
	require.NoError(t, f.habits.UpsertCoreSchedule(ctx, []models.CoreHabitSchedule{
		{UserID: a, HabitKey: "meditate", Weekday: 1, Enabled: true, ReminderTime: "06:30"},
		{UserID: a, HabitKey: "meditate", Weekday: 3, Enabled: false, ReminderTime: "06:30"},
	}))

	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "core", Identifier: "meditate", Mode: "supportive"})
	require.NoError(t, err)
	p, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)
	assert.Nil(t, p.InviteeHabitRef)

	enabled, err := f.catalog.ListEnabledCoreHabits(ctx, b)
	require.NoError(t, err)
	assert.Contains(t, enabled, "meditate")

	slots, err := f.habits.ListCoreSchedule(ctx, b, "meditate")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, 1, slots[0].Weekday)
	assert.True(t, slots[0].Enabled)
	assert.False(t, slots[1].Enabled)
}

func TestListsEnrichWithCounterpartProfiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	habitID := f.customHabit(t, a, coldPlunge)

	p1, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "custom", Identifier: habitID, Mode: "supportive"})
	require.NoError(t, err)
	_, err = f.lifecycle.AcceptInvite(ctx, p1.ID, b)
	require.NoError(t, err)
	_, err = f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: c, InviteeID: b, HabitType: "core", Identifier: "journal", Mode: "supportive"})
	require.NoError(t, err)

	active, err := f.lifecycle.ListActivePartnerships(ctx, b)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a, active[0].Partner.ID)
	assert.Equal(t, "alice", active[0].Partner.Handle)
	assert.Equal(t, "alice display", active[0].Partner.DisplayName)
	assert.Equal(t, "Cold Plunge", active[0].HabitName)

	pending, err := f.lifecycle.ListPendingInvites(ctx, b)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c, pending[0].Partner.ID)
	assert.Equal(t, "Journal", pending[0].HabitName)

	fromA, err := f.lifecycle.ListActivePartnerships(ctx, a)
	require.NoError(t, err)
	require.Len(t, fromA, 1)
	assert.Equal(t, b, fromA[0].Partner.ID)
}

func TestListSentInvitesIncludesEveryStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	toBob, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: b, HabitType: "core", Identifier: "water", Mode: "supportive"})
	require.NoError(t, err)
	require.NoError(t, f.lifecycle.DeclineInvite(ctx, toBob.ID, b))
	_, err = f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: a, InviteeID: c, HabitType: "core", Identifier: "read", Mode: "supportive"})
	require.NoError(t, err)
	_, err = f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: b, InviteeID: a, HabitType: "core", Identifier: "walk", Mode: "supportive"})
	require.NoError(t, err)

	sent, err := f.lifecycle.ListSentInvites(ctx, a)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	statuses := map[uint]string{}
	for _, v := range sent {
		statuses[v.Partner.ID] = v.Status
	}
	assert.Equal(t, map[uint]string{b: domain.PartnershipStatusDeclined, c: domain.PartnershipStatusPending}, statuses)
}

func TestHabitDisplayName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := "unknown_key"
	core := &models.Partnership{HabitType: domain.HabitTypeCore, HabitKey: &key}
	assert.Equal(t, "unknown_key", f.lifecycle.HabitDisplayName(ctx, core, 1))

	ref := "gone"
	custom := &models.Partnership{InviterID: 1, InviteeID: 2, HabitType: domain.HabitTypeCustom, InviterHabitRef: &ref}
	assert.Equal(t, domain.CustomHabitFallbackName, f.lifecycle.HabitDisplayName(ctx, custom, 2))
}

func TestInviteOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")

	opts, err := f.lifecycle.InviteOptions(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, opts.CoreHabits)
	assert.False(t, opts.HasCustomHabits)

	require.NoError(t, f.catalog.EnableCoreHabit(ctx, a, "water"))
	require.NoError(t, f.catalog.EnableCoreHabit(ctx, a, "read"))
	f.customHabit(t, a, coldPlunge)

	opts, err = f.lifecycle.InviteOptions(ctx, a)
	require.NoError(t, err)
	assert.True(t, opts.HasCustomHabits)
	assert.Equal(t, []service.CoreHabitOption{{Key: "read", Name: "Read"}, {Key: "water", Name: "Drink Water"}}, opts.CoreHabits)
}
