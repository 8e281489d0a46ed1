package service

import (
	"context"
	"fmt"
	"time"

	"habitpact/internal/domain"
	"habitpact/internal/logging"
	"habitpact/internal/models"
	"habitpact/internal/realtime"
	"habitpact/internal/repository"

	"github.com/sirupsen/logrus"
)

// ProgressService records daily completion per partner and republishes every
// change to live subscribers.
type ProgressService struct {
	progress     *repository.ProgressRepository
	partnerships *repository.PartnershipRepository
	feed         *realtime.Feed
	broker       realtime.Broker
	log          logrus.FieldLogger
	now          Clock
}

func NewProgressService(
	progress *repository.ProgressRepository,
	partnerships *repository.PartnershipRepository,
	feed *realtime.Feed,
	broker realtime.Broker,
	log logrus.FieldLogger,
) *ProgressService {
	return &ProgressService{
		progress:     progress,
		partnerships: partnerships,
		feed:         feed,
		broker:       broker,
		log:          logging.Component(log, "progress"),
		now:          systemClock,
	}
}

func (s *ProgressService) WithClock(c Clock) *ProgressService {
	s.now = c
	return s
}

// RecordProgress upserts userID's state for date. Completing extends yesterday's
// streak by one; un-completing resets it to zero. Last write wins.
func (s *ProgressService) RecordProgress(ctx context.Context, partnershipID string, userID uint, date string, completed bool) (*models.PartnerProgress, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, partnershipID, userID); err != nil {
		return nil, err
	}
	existing, err := s.progress.Get(ctx, partnershipID, userID, date)
	if err != nil {
		return nil, storeErr(err, "read progress")
	}
	streak := 0
	if completed {
		streak = 1
		prev, err := s.progress.Get(ctx, partnershipID, userID, day.AddDate(0, 0, -1).Format(domain.DateLayout))
		if err != nil {
			return nil, storeErr(err, "read progress")
		}
		if prev != nil && prev.Completed {
			streak = prev.StreakCount + 1
		}
	}
	row := &models.PartnerProgress{
		PartnershipID: partnershipID,
		UserID:        userID,
		Date:          date,
		Completed:     completed,
		StreakCount:   streak,
		UpdatedAt:     s.now(),
	}
	if err := s.progress.Upsert(ctx, row); err != nil {
		return nil, storeErr(err, "record progress")
	}
	evType := domain.ProgressEventUpdate
	if existing == nil {
		evType = domain.ProgressEventInsert
	}
	s.publish(ctx, realtime.ProgressEvent{Type: evType, Row: *row})
	return row, nil
}

// GetProgress returns {false, 0} when nothing was recorded.
func (s *ProgressService) GetProgress(ctx context.Context, partnershipID string, userID uint, date string) (models.ProgressState, error) {
	if _, err := parseDay(date); err != nil {
		return models.ProgressState{}, err
	}
	row, err := s.progress.Get(ctx, partnershipID, userID, date)
	if err != nil {
		return models.ProgressState{}, storeErr(err, "read progress")
	}
	if row == nil {
		return models.ProgressState{}, nil
	}
	return models.ProgressState{Completed: row.Completed, Streak: row.StreakCount}, nil
}

// ClearProgress removes userID's row for date. Subscribers get a DELETE event
// carrying the removed values. It reports whether a row existed.
func (s *ProgressService) ClearProgress(ctx context.Context, partnershipID string, userID uint, date string) (bool, error) {
	if _, err := parseDay(date); err != nil {
		return false, err
	}
	if err := s.checkOwner(ctx, partnershipID, userID); err != nil {
		return false, err
	}
	existing, err := s.progress.Get(ctx, partnershipID, userID, date)
	if err != nil {
		return false, storeErr(err, "read progress")
	}
	if existing == nil {
		return false, nil
	}
	deleted, err := s.progress.Delete(ctx, partnershipID, userID, date)
	if err != nil {
		return false, storeErr(err, "clear progress")
	}
	if deleted {
		s.publish(ctx, realtime.ProgressEvent{Type: domain.ProgressEventDelete, Row: *existing})
	}
	return deleted, nil
}

// Subscribe delivers changes for the given partnerships to cb until the
// returned handle is released.
func (s *ProgressService) Subscribe(partnershipIDs []string, cb realtime.Callback) *realtime.Subscription {
	return s.feed.Subscribe(partnershipIDs, cb)
}

func (s *ProgressService) checkOwner(ctx context.Context, partnershipID string, userID uint) error {
	p, err := s.partnerships.GetByID(ctx, partnershipID)
	if err != nil {
		return storeErr(err, "partnership")
	}
	if !p.IsParticipant(userID) {
		return fmt.Errorf("not a participant: %w", domain.ErrForbidden)
	}
	return nil
}

// publish runs after the write has committed; a broker failure is logged, not returned.
func (s *ProgressService) publish(ctx context.Context, ev realtime.ProgressEvent) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("partnership_id", ev.Row.PartnershipID).Warn("progress event not published")
	}
}

func parseDay(date string) (time.Time, error) {
	day, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD: %w", date, domain.ErrInvalidInput)
	}
	return day, nil
}
