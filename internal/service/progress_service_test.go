package service_test

import (
	"context"
	"sync"
	"testing"

	"habitpact/internal/domain"
	"habitpact/internal/models"
	"habitpact/internal/realtime"
	"habitpact/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventSink struct {
	mu     sync.Mutex
	events []realtime.ProgressEvent
}

func (s *eventSink) add(ev realtime.ProgressEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) all() []realtime.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.ProgressEvent(nil), s.events...)
}

func TestRecordProgressUpsertsOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, _, b := f.acceptedPair(t)

	_, err := f.progress.RecordProgress(ctx, p.ID, b, "2026-03-10", true)
	require.NoError(t, err)
	_, err = f.progress.RecordProgress(ctx, p.ID, b, "2026-03-10", false)
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.PartnerProgress{}).Where("partnership_id = ? AND user_id = ?", p.ID, b).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	state, err := f.progress.GetProgress(ctx, p.ID, b, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, models.ProgressState{Completed: false, Streak: 0}, state)
}

func TestGetProgressDefaultsWhenAbsent(t *testing.T) {
	f := newFixture(t)
	p, a, _ := f.acceptedPair(t)

	state, err := f.progress.GetProgress(context.Background(), p.ID, a, "2026-01-01")
	require.NoError(t, err)
	assert.Equal(t, models.ProgressState{}, state)

	_, err = f.progress.GetProgress(context.Background(), p.ID, a, "01/01/2026")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStreakExtendsAcrossConsecutiveDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, a, _ := f.acceptedPair(t)

	for _, day := range []string{"2026-03-08", "2026-03-09", "2026-03-10"} {
		_, err := f.progress.RecordProgress(ctx, p.ID, a, day, true)
		require.NoError(t, err)
	}
	state, err := f.progress.GetProgress(ctx, p.ID, a, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 3, state.Streak)

	// A gap restarts the streak.
	row, err := f.progress.RecordProgress(ctx, p.ID, a, "2026-03-12", true)
	require.NoError(t, err)
	assert.Equal(t, 1, row.StreakCount)
}

func TestRecordProgressRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	p, _, _ := f.acceptedPair(t)
	outsider := f.user(t, "mallory")

	_, err := f.progress.RecordProgress(context.Background(), p.ID, outsider, "2026-03-10", true)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.progress.RecordProgress(context.Background(), "missing", outsider, "2026-03-10", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubscribeFiltersByPartnershipAndReportsDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, a, b := f.acceptedPair(t)
	c := f.user(t, "carol")
	other, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{InviterID: c, InviteeID: a, HabitType: "core", Identifier: "read", Mode: "supportive"})
	require.NoError(t, err)
	_, err = f.lifecycle.AcceptInvite(ctx, other.ID, a)
	require.NoError(t, err)

	sink := &eventSink{}
	sub := f.progress.Subscribe([]string{p.ID}, sink.add)

	_, err = f.progress.RecordProgress(ctx, other.ID, a, "2026-03-10", true)
	require.NoError(t, err)
	_, err = f.progress.RecordProgress(ctx, p.ID, b, "2026-03-10", true)
	require.NoError(t, err)
	_, err = f.progress.RecordProgress(ctx, p.ID, b, "2026-03-10", true)
	require.NoError(t, err)
	cleared, err := f.progress.ClearProgress(ctx, p.ID, b, "2026-03-10")
	require.NoError(t, err)
	assert.True(t, cleared)

	events := sink.all()
	require.Len(t, events, 3)
	assert.Equal(t, domain.ProgressEventInsert, events[0].Type)
	assert.Equal(t, domain.ProgressEventUpdate, events[1].Type)
	assert.Equal(t, domain.ProgressEventDelete, events[2].Type)
	assert.True(t, events[2].Row.Completed, "delete carries last-known values")
	assert.Equal(t, b, events[2].Row.UserID)

	sub.Unsubscribe()
	_, err = f.progress.RecordProgress(ctx, p.ID, b, "2026-03-11", true)
	require.NoError(t, err)
	assert.Len(t, sink.all(), 3)

	cleared, err = f.progress.ClearProgress(ctx, p.ID, b, "2026-03-01")
	require.NoError(t, err)
	assert.False(t, cleared)
}

func TestColdPlungeEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	habitID := f.customHabit(t, a, coldPlunge)

	p, err := f.lifecycle.SendInvite(ctx, service.InviteRequest{
		InviterID: a, InviteeID: b, HabitType: domain.HabitTypeCustom, Identifier: habitID, Mode: domain.ModeCompetitive,
	})
	require.NoError(t, err)
	p, err = f.lifecycle.AcceptInvite(ctx, p.ID, b)
	require.NoError(t, err)

	assert.Equal(t, domain.PartnershipStatusAccepted, p.Status)
	assert.Equal(t, domain.ModeCompetitive, p.Mode)
	require.NotNil(t, p.InviteeHabitRef)
	mirrored, err := f.habits.GetActiveCustom(ctx, *p.InviteeHabitRef)
	require.NoError(t, err)
	assert.Equal(t, b, mirrored.UserID)
	want := coldPlunge
	want.OwnerID = b
	assert.Equal(t, want, mirrored.Definition())
	assert.Equal(t, 1, f.notify.count(a, domain.NotificationPartnerAccepted))

	sink := &eventSink{}
	sub := f.progress.Subscribe([]string{p.ID}, sink.add)
	defer sub.Unsubscribe()

	today := f.clock.Now().Format(domain.DateLayout)
	_, err = f.progress.RecordProgress(ctx, p.ID, b, today, true)
	require.NoError(t, err)

	events := sink.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].Row.Completed)
	assert.Equal(t, b, events[0].Row.UserID)
	assert.Equal(t, today, events[0].Row.Date)
	assert.Equal(t, p.ID, events[0].Row.PartnershipID)
}
