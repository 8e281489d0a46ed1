package service

import (
	"context"
	"encoding/json"
	"testing"

	"habitpact/internal/database/dbtest"
	"habitpact/internal/domain"
	"habitpact/internal/logging"
	"habitpact/internal/repository"
	"habitpact/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchStoresAndPushesToSockets(t *testing.T) {
	db := dbtest.Open(t)
	repo := repository.NewNotificationRepository(db)
	hub := ws.NewHub()
	client := ws.NewClient(42, 4)
	hub.Register(client)
	svc := NewNotificationService(repo, repository.NewUserRepository(db), nil, hub, logging.Discard())

	err := svc.Dispatch(context.Background(), 42, domain.NotificationPartnerNudge, map[string]interface{}{"habit_title": "Read"})
	require.NoError(t, err)

	list, err := repo.ListByUserID(context.Background(), 42, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Your partner nudged you", list[0].Title)
	assert.Equal(t, "Don't forget: Read", list[0].Body)

	var frame struct {
		Type         string `json:"type"`
		Notification struct {
			Kind string `json:"kind"`
		} `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(<-client.Outbound(), &frame))
	assert.Equal(t, "notification", frame.Type)
	assert.Equal(t, domain.NotificationPartnerNudge, frame.Notification.Kind)
}

func TestRenderNotification(t *testing.T) {
	title, body := renderNotification(domain.NotificationPartnerInvite, map[string]interface{}{"habit_name": "Cold Plunge"})
	assert.Equal(t, "New partner invite", title)
	assert.Equal(t, "You have been invited to do Cold Plunge together", body)

	_, body = renderNotification(domain.NotificationPartnerAccepted, nil)
	assert.Equal(t, "Your partner accepted your invite", body)
}
