package service

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// FCMService sends push notifications via Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
	log    logrus.FieldLogger
}

// NewFCMService returns nil if Firebase is not configured or fails to initialise.
func NewFCMService(serviceAccountPath string, log logrus.FieldLogger) *FCMService {
	if serviceAccountPath == "" {
		return nil
	}
	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.WithError(err).Error("firebase app init failed")
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.WithError(err).Error("firebase messaging client init failed")
		return nil
	}
	return &FCMService{client: client, log: log}
}

func (s *FCMService) Send(ctx context.Context, token string, title, body string, data map[string]string) error {
	if s == nil || token == "" {
		return nil
	}
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  data,
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
	if _, err := s.client.Send(ctx, msg); err != nil {
		s.log.WithError(err).Warn("fcm send failed")
		return err
	}
	return nil
}

// SendToUser stringifies data (FCM only carries string values) and adds the kind under "type".
func (s *FCMService) SendToUser(ctx context.Context, fcmToken string, kind, title, body string, data map[string]interface{}) error {
	if s == nil || fcmToken == "" {
		return nil
	}
	return s.Send(ctx, fcmToken, title, body, stringifyData(kind, data))
}

func stringifyData(kind string, data map[string]interface{}) map[string]string {
	out := make(map[string]string, len(data)+1)
	out["type"] = kind
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case uint:
			out[k] = fmt.Sprintf("%d", val)
		case int:
			out[k] = fmt.Sprintf("%d", val)
		case float64:
			out[k] = fmt.Sprintf("%.0f", val)
		default:
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
	}
	return out
}
