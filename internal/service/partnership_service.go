package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"habitpact/internal/catalog"
	"habitpact/internal/domain"
	"habitpact/internal/logging"
	"habitpact/internal/metrics"
	"habitpact/internal/models"
	"habitpact/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PartnershipService runs the invite lifecycle: invite, accept, decline, cancel, remove.
type PartnershipService struct {
	partnerships *repository.PartnershipRepository
	users        *repository.UserRepository
	catalog      HabitCatalog
	mirror       *MirrorService
	notify       Dispatcher
	log          logrus.FieldLogger
	now          Clock
}

func NewPartnershipService(
	partnerships *repository.PartnershipRepository,
	users *repository.UserRepository,
	habits HabitCatalog,
	mirror *MirrorService,
	notify Dispatcher,
	log logrus.FieldLogger,
) *PartnershipService {
	return &PartnershipService{
		partnerships: partnerships,
		users:        users,
		catalog:      habits,
		mirror:       mirror,
		notify:       notify,
		log:          logging.Component(log, "partnerships"),
		now:          systemClock,
	}
}

// WithClock replaces the time source.
func (s *PartnershipService) WithClock(c Clock) *PartnershipService {
	s.now = c
	return s
}

// InviteRequest names the habit a partnership is built around. Identifier is the
// core habit key or the inviter's custom habit id.
type InviteRequest struct {
	InviterID  uint
	InviteeID  uint
	HabitType  string
	Identifier string
	Mode       string
}

func (r InviteRequest) validate() error {
	switch {
	case r.InviterID == 0 || r.InviteeID == 0:
		return fmt.Errorf("inviter and invitee required: %w", domain.ErrInvalidInput)
	case r.InviterID == r.InviteeID:
		return fmt.Errorf("cannot invite yourself: %w", domain.ErrInvalidInput)
	case !domain.ValidHabitType(r.HabitType):
		return fmt.Errorf("habit_type %q: %w", r.HabitType, domain.ErrInvalidInput)
	case !domain.ValidMode(r.Mode):
		return fmt.Errorf("mode %q: %w", r.Mode, domain.ErrInvalidInput)
	case strings.TrimSpace(r.Identifier) == "":
		return fmt.Errorf("habit identifier required: %w", domain.ErrInvalidInput)
	}
	return nil
}

// SendInvite creates the partnership for the request's tuple, revives a declined or
// cancelled one, or returns an already pending/accepted one unchanged.
func (s *PartnershipService) SendInvite(ctx context.Context, req InviteRequest) (*models.Partnership, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	existing, err := s.partnerships.FindByTuple(ctx, req.InviterID, req.InviteeID, req.HabitType, req.Identifier)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err, "find partnership")
	}
	// Pending and accepted rows come back as is, without consulting the catalog.
	if existing != nil && !domain.IsTerminalStatus(existing.Status) {
		return existing, nil
	}

	snapshot, err := s.captureSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.createInvite(ctx, req, snapshot)
	}
	return s.reviveInvite(ctx, existing, req.Mode, snapshot)
}

func (s *PartnershipService) captureSnapshot(ctx context.Context, req InviteRequest) (*models.HabitDefinition, error) {
	if req.HabitType != domain.HabitTypeCustom {
		return nil, nil
	}
	def, err := s.catalog.GetCustomHabitDefinition(ctx, req.Identifier)
	if err != nil {
		return nil, err
	}
	if def.OwnerID != 0 && def.OwnerID != req.InviterID {
		return nil, fmt.Errorf("habit belongs to another user: %w", domain.ErrForbidden)
	}
	return def, nil
}

func (s *PartnershipService) createInvite(ctx context.Context, req InviteRequest, snapshot *models.HabitDefinition) (*models.Partnership, error) {
	identifier := req.Identifier
	p := &models.Partnership{
		InviterID:       req.InviterID,
		InviteeID:       req.InviteeID,
		HabitType:       req.HabitType,
		HabitIdentifier: identifier,
		Mode:            req.Mode,
		Status:          domain.PartnershipStatusPending,
		CreatedAt:       s.now(),
	}
	if req.HabitType == domain.HabitTypeCore {
		p.HabitKey = &identifier
	} else {
		p.InviterHabitRef = &identifier
	}
	if err := p.SetSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.partnerships.Create(ctx, p); err != nil {
		// A concurrent invite for the same tuple won the insert.
		if found, ferr := s.partnerships.FindByTuple(ctx, req.InviterID, req.InviteeID, req.HabitType, identifier); ferr == nil {
			return found, nil
		}
		return nil, storeErr(err, "create partnership")
	}
	metrics.RecordTransition("invite")
	s.dispatchInvite(ctx, p)
	return p, nil
}

func (s *PartnershipService) reviveInvite(ctx context.Context, p *models.Partnership, mode string, snapshot *models.HabitDefinition) (*models.Partnership, error) {
	now := s.now()
	revived := *p
	if err := revived.SetSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	changed, err := s.partnerships.Transition(ctx, p.ID,
		[]string{domain.PartnershipStatusDeclined, domain.PartnershipStatusCancelled},
		domain.PartnershipStatusPending,
		map[string]interface{}{
			"mode":           mode,
			"habit_snapshot": revived.HabitSnapshot,
			"created_at":     now,
			"accepted_at":    nil,
		})
	if err != nil {
		return nil, storeErr(err, "revive partnership")
	}
	current, err := s.partnerships.GetByID(ctx, p.ID)
	if err != nil {
		return nil, storeErr(err, "partnership")
	}
	if changed {
		metrics.RecordTransition("reinvite")
		s.dispatchInvite(ctx, current)
	}
	return current, nil
}

// AcceptInvite accepts a pending invite as its invitee and mirrors the habit to
// the invitee's side. Mirroring and notification failures are logged only.
// Accepting an already accepted partnership re-runs mirroring without notifying.
func (s *PartnershipService) AcceptInvite(ctx context.Context, partnershipID string, actorID uint) (*models.Partnership, error) {
	p, err := s.partnerships.GetByID(ctx, partnershipID)
	if err != nil {
		return nil, storeErr(err, "partnership")
	}
	if actorID != p.InviteeID {
		return nil, fmt.Errorf("only the invitee can accept: %w", domain.ErrForbidden)
	}
	if domain.IsTerminalStatus(p.Status) {
		return nil, fmt.Errorf("partnership is %s: %w", p.Status, domain.ErrInvalidTransition)
	}

	changed := false
	if p.IsPending() {
		changed, err = s.partnerships.Transition(ctx, p.ID,
			[]string{domain.PartnershipStatusPending}, domain.PartnershipStatusAccepted,
			map[string]interface{}{"accepted_at": s.now()})
		if err != nil {
			return nil, storeErr(err, "accept partnership")
		}
		if p, err = s.partnerships.GetByID(ctx, partnershipID); err != nil {
			return nil, storeErr(err, "partnership")
		}
		if !p.IsAccepted() {
			return nil, fmt.Errorf("partnership is %s: %w", p.Status, domain.ErrInvalidTransition)
		}
	}

	s.mirrorAccepted(ctx, p)

	if changed {
		metrics.RecordTransition("accept")
		s.dispatch(ctx, p.InviterID, domain.NotificationPartnerAccepted, map[string]interface{}{
			"partnership_id": p.ID,
			"invitee_id":     p.InviteeID,
			"habit_name":     s.HabitDisplayName(ctx, p, p.InviterID),
		})
	}
	return p, nil
}

func (s *PartnershipService) mirrorAccepted(ctx context.Context, p *models.Partnership) {
	entry := s.log.WithField("partnership_id", p.ID)
	ref, err := s.mirror.Mirror(ctx, p)
	if err != nil {
		metrics.RecordMirror("failed")
		entry.WithError(err).Warn("habit mirroring failed; partnership stays accepted")
		return
	}
	if ref == "" || (p.InviteeHabitRef != nil && *p.InviteeHabitRef == ref) {
		return
	}
	if err := s.partnerships.SetInviteeHabitRef(ctx, p.ID, ref); err != nil {
		entry.WithError(err).Warn("could not store invitee habit ref")
		return
	}
	p.InviteeHabitRef = &ref
}

// DeclineInvite lets the invitee turn down a pending invite.
func (s *PartnershipService) DeclineInvite(ctx context.Context, partnershipID string, actorID uint) error {
	return s.terminate(ctx, partnershipID, actorID, terminateRule{
		name: "decline",
		allowed: func(p *models.Partnership, actor uint) bool {
			return actor == p.InviteeID
		},
		from: domain.PartnershipStatusPending,
		to:   domain.PartnershipStatusDeclined,
	})
}

// CancelInvite lets the inviter withdraw a pending invite.
func (s *PartnershipService) CancelInvite(ctx context.Context, partnershipID string, actorID uint) error {
	return s.terminate(ctx, partnershipID, actorID, terminateRule{
		name: "cancel",
		allowed: func(p *models.Partnership, actor uint) bool {
			return actor == p.InviterID
		},
		from: domain.PartnershipStatusPending,
		to:   domain.PartnershipStatusCancelled,
	})
}

// RemovePartnership ends an accepted partnership; either participant may do it.
func (s *PartnershipService) RemovePartnership(ctx context.Context, partnershipID string, actorID uint) error {
	return s.terminate(ctx, partnershipID, actorID, terminateRule{
		name:    "remove",
		allowed: (*models.Partnership).IsParticipant,
		from:    domain.PartnershipStatusAccepted,
		to:      domain.PartnershipStatusCancelled,
	})
}

type terminateRule struct {
	name    string
	allowed func(p *models.Partnership, actor uint) bool
	from    string
	to      string
}

// terminate applies a guarded status change. Rows already in a terminal state succeed as a no-op.
func (s *PartnershipService) terminate(ctx context.Context, partnershipID string, actorID uint, rule terminateRule) error {
	p, err := s.partnerships.GetByID(ctx, partnershipID)
	if err != nil {
		return storeErr(err, "partnership")
	}
	if !rule.allowed(p, actorID) {
		return fmt.Errorf("%s not permitted for this user: %w", rule.name, domain.ErrForbidden)
	}
	if domain.IsTerminalStatus(p.Status) {
		return nil
	}
	if p.Status != rule.from {
		return fmt.Errorf("cannot %s a %s partnership: %w", rule.name, p.Status, domain.ErrInvalidTransition)
	}
	changed, err := s.partnerships.Transition(ctx, p.ID, []string{rule.from}, rule.to, nil)
	if err != nil {
		return storeErr(err, rule.name+" partnership")
	}
	if changed {
		metrics.RecordTransition(rule.name)
		return nil
	}
	// Lost a race; settle on whatever the row is now.
	if p, err = s.partnerships.GetByID(ctx, partnershipID); err != nil {
		return storeErr(err, "partnership")
	}
	if domain.IsTerminalStatus(p.Status) {
		return nil
	}
	return fmt.Errorf("cannot %s a %s partnership: %w", rule.name, p.Status, domain.ErrInvalidTransition)
}

// ListPendingInvites returns invites awaiting userID's answer, each with the inviter's profile.
func (s *PartnershipService) ListPendingInvites(ctx context.Context, userID uint) ([]models.PartnershipView, error) {
	list, err := s.partnerships.ListPendingForInvitee(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "list pending invites")
	}
	return s.enrich(ctx, userID, list)
}

// ListSentInvites returns every invite userID has sent, whatever its status.
func (s *PartnershipService) ListSentInvites(ctx context.Context, userID uint) ([]models.PartnershipView, error) {
	list, err := s.partnerships.ListSentByInviter(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "list sent invites")
	}
	return s.enrich(ctx, userID, list)
}

// ListActivePartnerships returns userID's accepted partnerships, each with the partner's profile.
func (s *PartnershipService) ListActivePartnerships(ctx context.Context, userID uint) ([]models.PartnershipView, error) {
	list, err := s.partnerships.ListAcceptedForUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "list partnerships")
	}
	return s.enrich(ctx, userID, list)
}

// enrich attaches counterpart profiles using one batched lookup.
func (s *PartnershipService) enrich(ctx context.Context, viewer uint, list []models.Partnership) ([]models.PartnershipView, error) {
	seen := make(map[uint]struct{}, len(list))
	ids := make([]uint, 0, len(list))
	for i := range list {
		id := list[i].CounterpartID(viewer)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	profiles, err := s.users.ListSummariesByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "load profiles")
	}
	views := make([]models.PartnershipView, 0, len(list))
	for i := range list {
		p := list[i]
		partnerID := p.CounterpartID(viewer)
		partner, ok := profiles[partnerID]
		if !ok {
			partner = models.ProfileSummary{ID: partnerID}
		}
		views = append(views, models.PartnershipView{
			Partnership: p,
			HabitName:   s.HabitDisplayName(ctx, &p, viewer),
			Partner:     partner,
		})
	}
	return views, nil
}

// HabitDisplayName resolves the habit's name as viewer sees it.
func (s *PartnershipService) HabitDisplayName(ctx context.Context, p *models.Partnership, viewer uint) string {
	if !p.IsCustom() {
		if p.HabitKey == nil {
			return ""
		}
		return s.catalog.ResolveCoreHabitName(*p.HabitKey)
	}
	ref := p.HabitRefFor(viewer)
	if ref == "" {
		return domain.CustomHabitFallbackName
	}
	def, err := s.catalog.GetCustomHabitDefinition(ctx, ref)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.WithError(err).WithField("habit_ref", ref).Warn("habit name lookup failed")
		}
		return domain.CustomHabitFallbackName
	}
	return def.Title
}

// CoreHabitOption is one core habit a user can invite a partner to.
type CoreHabitOption struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// InviteOptions lists what userID can invite a partner to.
type InviteOptions struct {
	CoreHabits      []CoreHabitOption `json:"core_habits"`
	HasCustomHabits bool              `json:"has_custom_habits"`
}

func (s *PartnershipService) InviteOptions(ctx context.Context, userID uint) (*InviteOptions, error) {
	enabled, err := s.catalog.ListEnabledCoreHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	hasCustom, err := s.catalog.UserHasAnyCustomHabit(ctx, userID)
	if err != nil {
		return nil, err
	}
	opts := &InviteOptions{CoreHabits: make([]CoreHabitOption, 0, len(enabled)), HasCustomHabits: hasCustom}
	for key := range enabled {
		opts.CoreHabits = append(opts.CoreHabits, CoreHabitOption{Key: key, Name: catalog.ResolveCoreHabitName(key)})
	}
	sort.Slice(opts.CoreHabits, func(i, j int) bool { return opts.CoreHabits[i].Key < opts.CoreHabits[j].Key })
	return opts, nil
}

// AuthorizeParticipant loads the partnership and checks userID is on one side of it.
func (s *PartnershipService) AuthorizeParticipant(ctx context.Context, partnershipID string, userID uint) (*models.Partnership, error) {
	p, err := s.partnerships.GetByID(ctx, partnershipID)
	if err != nil {
		return nil, storeErr(err, "partnership")
	}
	if !p.IsParticipant(userID) {
		return nil, fmt.Errorf("not a participant: %w", domain.ErrForbidden)
	}
	return p, nil
}

func (s *PartnershipService) dispatchInvite(ctx context.Context, p *models.Partnership) {
	s.dispatch(ctx, p.InviteeID, domain.NotificationPartnerInvite, map[string]interface{}{
		"partnership_id": p.ID,
		"inviter_id":     p.InviterID,
		"habit_type":     p.HabitType,
		"habit_name":     s.HabitDisplayName(ctx, p, p.InviterID),
		"mode":           p.Mode,
	})
}

func (s *PartnershipService) dispatch(ctx context.Context, userID uint, kind string, payload map[string]interface{}) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Dispatch(ctx, userID, kind, payload); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "kind": kind}).Warn("notification dispatch failed")
	}
}
