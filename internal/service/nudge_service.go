package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habitpact/internal/domain"
	"habitpact/internal/logging"
	"habitpact/internal/metrics"
	"habitpact/internal/models"
	"habitpact/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NudgeService sends partner reminders, at most one per partnership per cooldown window.
type NudgeService struct {
	nudges       *repository.NudgeRepository
	partnerships *repository.PartnershipRepository
	notify       Dispatcher
	log          logrus.FieldLogger
	now          Clock
}

func NewNudgeService(nudges *repository.NudgeRepository, partnerships *repository.PartnershipRepository, notify Dispatcher, log logrus.FieldLogger) *NudgeService {
	return &NudgeService{
		nudges:       nudges,
		partnerships: partnerships,
		notify:       notify,
		log:          logging.Component(log, "nudges"),
		now:          systemClock,
	}
}

func (s *NudgeService) WithClock(c Clock) *NudgeService {
	s.now = c
	return s
}

// NudgeStatus describes whether a partnership can be nudged right now.
type NudgeStatus struct {
	CanNudge   bool          `json:"can_nudge"`
	LastNudge  *time.Time    `json:"last_nudged_at"`
	RetryAfter time.Duration `json:"-"`
}

func (s *NudgeService) Status(ctx context.Context, partnershipID string) (NudgeStatus, error) {
	last, err := s.nudges.Latest(ctx, partnershipID)
	if err != nil {
		return NudgeStatus{}, storeErr(err, "read nudges")
	}
	if last == nil {
		return NudgeStatus{CanNudge: true}, nil
	}
	at := last.NudgedAt
	remaining := s.remaining(at)
	return NudgeStatus{CanNudge: remaining <= 0, LastNudge: &at, RetryAfter: remaining}, nil
}

// CanNudge is false while the latest nudge is inside the cooldown window.
func (s *NudgeService) CanNudge(ctx context.Context, partnershipID string) (bool, error) {
	st, err := s.Status(ctx, partnershipID)
	if err != nil {
		return false, err
	}
	return st.CanNudge, nil
}

// SendNudge records a nudge from nudgerID to their partner and notifies them.
// The cooldown check and the append happen under a lock on the partnership row.
func (s *NudgeService) SendNudge(ctx context.Context, partnershipID string, nudgerID, nudgedUserID uint, habitTitle string) (*models.Nudge, error) {
	p, err := s.partnerships.GetByID(ctx, partnershipID)
	if err != nil {
		return nil, storeErr(err, "partnership")
	}
	if !p.IsAccepted() || !p.IsParticipant(nudgerID) {
		return nil, fmt.Errorf("not an active partner: %w", domain.ErrForbidden)
	}
	if p.CounterpartID(nudgerID) != nudgedUserID {
		return nil, fmt.Errorf("can only nudge your partner: %w", domain.ErrForbidden)
	}

	n := &models.Nudge{
		PartnershipID: p.ID,
		NudgerID:      nudgerID,
		NudgedUserID:  nudgedUserID,
		HabitType:     p.HabitType,
		HabitKey:      p.HabitKey,
		NudgedAt:      s.now(),
	}
	if p.IsCustom() {
		if ref := p.HabitRefFor(nudgedUserID); ref != "" {
			n.CustomHabitID = &ref
		}
	}
	blocking, err := s.nudges.AppendIfCooledDown(ctx, n, domain.NudgeCooldown)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storeErr(err, "partnership")
		}
		return nil, storeErr(err, "append nudge")
	}
	if blocking != nil {
		metrics.RecordNudge("rate_limited")
		return nil, &domain.RateLimitError{RetryAfter: s.remaining(blocking.NudgedAt)}
	}
	metrics.RecordNudge("sent")

	if habitTitle == "" {
		habitTitle = "your habit"
	}
	if s.notify != nil {
		err := s.notify.Dispatch(ctx, nudgedUserID, domain.NotificationPartnerNudge, map[string]interface{}{
			"partnership_id": p.ID,
			"nudger_id":      nudgerID,
			"habit_title":    habitTitle,
		})
		if err != nil {
			s.log.WithError(err).WithField("partnership_id", p.ID).Warn("nudge notification failed")
		}
	}
	return n, nil
}

// GetLastNudgeTime returns nil when the partnership was never nudged.
func (s *NudgeService) GetLastNudgeTime(ctx context.Context, partnershipID string) (*time.Time, error) {
	last, err := s.nudges.Latest(ctx, partnershipID)
	if err != nil {
		return nil, storeErr(err, "read nudges")
	}
	if last == nil {
		return nil, nil
	}
	at := last.NudgedAt
	return &at, nil
}

// GetLastNudgeTimes omits partnerships that were never nudged.
func (s *NudgeService) GetLastNudgeTimes(ctx context.Context, partnershipIDs []string) (map[string]time.Time, error) {
	times, err := s.nudges.LatestTimes(ctx, partnershipIDs)
	if err != nil {
		return nil, storeErr(err, "read nudges")
	}
	return times, nil
}

func (s *NudgeService) remaining(last time.Time) time.Duration {
	return domain.NudgeCooldown - s.now().Sub(last)
}
