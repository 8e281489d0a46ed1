package service

import (
	"context"
	"errors"
	"fmt"

	"habitpact/internal/domain"
	"habitpact/internal/logging"
	"habitpact/internal/metrics"
	"habitpact/internal/models"

	"github.com/sirupsen/logrus"
)

// ErrMirrorSourceUnavailable means neither the inviter's habit nor the invite
// snapshot could supply a definition.
var ErrMirrorSourceUnavailable = errors.New("no habit definition to mirror")

// MirrorService provisions the invitee's side of an accepted partnership.
type MirrorService struct {
	catalog HabitCatalog
	log     logrus.FieldLogger
}

func NewMirrorService(catalog HabitCatalog, log logrus.FieldLogger) *MirrorService {
	return &MirrorService{catalog: catalog, log: logging.Component(log, "mirror")}
}

// Mirror makes sure the invitee owns a habit equivalent to the inviter's. For
// custom habits it returns the invitee-side reference; core habits return "".
// Repeated calls reuse an invitee habit with the same title instead of creating another.
func (s *MirrorService) Mirror(ctx context.Context, p *models.Partnership) (string, error) {
	if p.IsCustom() {
		return s.mirrorCustom(ctx, p)
	}
	return "", s.mirrorCore(ctx, p)
}

func (s *MirrorService) mirrorCore(ctx context.Context, p *models.Partnership) error {
	if p.HabitKey == nil || *p.HabitKey == "" {
		return fmt.Errorf("core partnership %s has no habit key: %w", p.ID, domain.ErrInvalidInput)
	}
	key := *p.HabitKey
	enabled, err := s.catalog.ListEnabledCoreHabits(ctx, p.InviteeID)
	if err != nil {
		return err
	}
	if _, ok := enabled[key]; ok {
		metrics.RecordMirror("core_present")
		return nil
	}
	if err := s.catalog.EnableCoreHabit(ctx, p.InviteeID, key); err != nil {
		return err
	}
	if err := s.catalog.CopySchedule(ctx, p.InviterID, p.InviteeID, key); err != nil {
		s.log.WithError(err).WithField("partnership_id", p.ID).Warn("schedule copy failed")
	}
	metrics.RecordMirror("core_enabled")
	return nil
}

func (s *MirrorService) mirrorCustom(ctx context.Context, p *models.Partnership) (string, error) {
	def, err := s.sourceDefinition(ctx, p)
	if err != nil {
		return "", err
	}
	ref, err := s.catalog.FindCustomHabitByTitle(ctx, p.InviteeID, def.Title)
	if err == nil {
		metrics.RecordMirror("custom_reused")
		return ref, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	ref, err = s.catalog.CreateCustomHabit(ctx, p.InviteeID, *def)
	if err != nil {
		return "", err
	}
	metrics.RecordMirror("custom_created")
	return ref, nil
}

// sourceDefinition prefers the inviter's live habit and falls back to the invite snapshot.
func (s *MirrorService) sourceDefinition(ctx context.Context, p *models.Partnership) (*models.HabitDefinition, error) {
	if p.InviterHabitRef != nil && *p.InviterHabitRef != "" {
		def, err := s.catalog.GetCustomHabitDefinition(ctx, *p.InviterHabitRef)
		if err == nil {
			return def, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	snap, err := p.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap == nil || snap.Title == "" {
		return nil, ErrMirrorSourceUnavailable
	}
	s.log.WithField("partnership_id", p.ID).Info("inviter habit gone, mirroring from snapshot")
	return snap, nil
}
