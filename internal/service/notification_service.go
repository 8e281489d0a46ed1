package service

import (
	"context"
	"encoding/json"
	"fmt"

	"habitpact/internal/domain"
	"habitpact/internal/logging"
	"habitpact/internal/metrics"
	"habitpact/internal/models"
	"habitpact/internal/repository"
	"habitpact/internal/ws"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// NotificationService is the engine's Dispatcher: it stores an inbox row, pushes
// a frame to the user's live sockets and sends an FCM push when a token is known.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
	hub      *ws.Hub
	log      logrus.FieldLogger
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService, hub *ws.Hub, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, fcm: fcm, hub: hub, log: logging.Component(log, "notifications")}
}

// Dispatch only fails when the inbox row cannot be written; socket and push delivery are best effort.
func (s *NotificationService) Dispatch(ctx context.Context, userID uint, kind string, payload map[string]interface{}) error {
	title, body := renderNotification(kind, payload)
	var raw datatypes.JSON
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		raw = datatypes.JSON(b)
	}
	n := &models.Notification{
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Body:    body,
		Payload: raw,
	}
	err := s.repo.Create(ctx, n)
	metrics.RecordNotification(kind, err)
	if err != nil {
		return fmt.Errorf("store notification: %w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if s.hub != nil {
		s.hub.SendToUser(userID, map[string]interface{}{"type": "notification", "notification": n})
	}
	s.sendPush(ctx, userID, kind, title, body, payload)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, userID uint, kind, title, body string, data map[string]interface{}) {
	if s.fcm == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil || u.FCMToken == "" {
		return
	}
	if err := s.fcm.SendToUser(ctx, u.FCMToken, kind, title, body, data); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Debug("push not delivered")
	}
}

func renderNotification(kind string, payload map[string]interface{}) (title, body string) {
	habit := stringField(payload, "habit_name")
	switch kind {
	case domain.NotificationPartnerInvite:
		if habit == "" {
			return "New partner invite", "You have been invited to a habit partnership"
		}
		return "New partner invite", "You have been invited to do " + habit + " together"
	case domain.NotificationPartnerAccepted:
		if habit == "" {
			return "Invite accepted", "Your partner accepted your invite"
		}
		return "Invite accepted", "Your partner accepted your " + habit + " invite"
	case domain.NotificationPartnerNudge:
		return "Your partner nudged you", "Don't forget: " + stringField(payload, "habit_title")
	}
	return kind, ""
}

func stringField(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
