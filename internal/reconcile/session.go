package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"teesheet/internal/domain"
	"teesheet/internal/events"
	"teesheet/internal/metrics"
	"teesheet/internal/models"

	"github.com/rs/zerolog"
)

// Slot layout: index 0 is the owner, 1..3 are additional players.
const (
	slotCount       = 4
	ownerSlot       = 0
	minDuplicateLen = 3
)

// Occupant kinds within a reconciliation session.
const (
	OccupantMember           = "member"
	OccupantVisitor          = "visitor"
	OccupantGuestPlaceholder = "guest_placeholder"
	OccupantStaff            = "staff"
)

var (
	// ErrOwnerRequired blocks finalize until the owner slot is filled.
	ErrOwnerRequired = errors.New("an owner must be selected before finalizing")

	ErrPlayerIndex = errors.New("player index must be 1..3")

	// ErrDuplicateVisitor is advisory: creation proceeds once the operator
	// explicitly dismisses the presented duplicates.
	ErrDuplicateVisitor = errors.New("existing records match this name; dismiss them to create anyway")

	ErrVisitorName = errors.New("visitor name is required")
)

// Occupant fills one of the four fixed slots.
type Occupant struct {
	Kind      string
	Name      string
	Email     string
	VisitorID int64
}

// Outcome reports how a finalize settled. When FeesRecalculated is set the
// caller should offer to open the billing view for BookingID.
type Outcome struct {
	Route            string
	BookingID        int64
	FeesRecalculated bool
}

// Session resolves one externally-ingested, ownerless booking into a fully
// assigned booking, or otherwise disposes of it. Provenance is resolved
// once at open.
type Session struct {
	api       domain.ReconcileAPI
	directory domain.DirectoryReader
	bus       domain.EventPublisher
	logger    zerolog.Logger
	rules     PlaceholderRules

	booking models.UnmatchedBooking
	prov    Provenance

	mu            sync.Mutex
	slots         [slotCount]*Occupant
	rememberEmail bool
}

// NewSession opens a workflow for one unmatched booking. The remember-email
// opt-in defaults on only when the imported email is not a vendor
// placeholder.
func NewSession(booking models.UnmatchedBooking, api domain.ReconcileAPI, directory domain.DirectoryReader, bus domain.EventPublisher, rules PlaceholderRules, logger *zerolog.Logger) (*Session, error) {
	prov, err := ResolveProvenance(&booking)
	if err != nil {
		return nil, err
	}

	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "reconcile").Str("route", prov.Route).Logger()
	}

	return &Session{
		api:           api,
		directory:     directory,
		bus:           bus,
		logger:        base,
		rules:         rules,
		booking:       booking,
		prov:          prov,
		rememberEmail: !rules.IsPlaceholder(booking.ImportedEmail),
	}, nil
}

// Provenance returns the route resolved at open.
func (s *Session) Provenance() Provenance { return s.prov }

// RememberEmail returns the current opt-in state.
func (s *Session) RememberEmail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rememberEmail
}

// SetRememberEmail overrides the opt-in.
func (s *Session) SetRememberEmail(v bool) {
	s.mu.Lock()
	s.rememberEmail = v
	s.mu.Unlock()
}

// SetOwnerMember fills the owner slot with a member.
func (s *Session) SetOwnerMember(m models.Member) {
	s.mu.Lock()
	s.slots[ownerSlot] = &Occupant{Kind: OccupantMember, Name: m.Name, Email: m.Email}
	s.mu.Unlock()
}

// SetPlayerMember fills player slot i (1..3) with a member.
func (s *Session) SetPlayerMember(i int, m models.Member) error {
	return s.setPlayer(i, &Occupant{Kind: OccupantMember, Name: m.Name, Email: m.Email})
}

// SetPlayerVisitor fills player slot i with an existing visitor.
func (s *Session) SetPlayerVisitor(i int, v models.Visitor) error {
	return s.setPlayer(i, &Occupant{Kind: OccupantVisitor, Name: v.Name, Email: v.Email, VisitorID: v.ID})
}

// SetPlayerPlaceholder fills player slot i with a detail-incomplete guest
// pending follow-up.
func (s *Session) SetPlayerPlaceholder(i int, name string) error {
	return s.setPlayer(i, &Occupant{Kind: OccupantGuestPlaceholder, Name: strings.TrimSpace(name)})
}

// ClearPlayer empties player slot i.
func (s *Session) ClearPlayer(i int) error {
	return s.setPlayer(i, nil)
}

func (s *Session) setPlayer(i int, occ *Occupant) error {
	if i < 1 || i >= slotCount {
		return ErrPlayerIndex
	}
	s.mu.Lock()
	s.slots[i] = occ
	s.mu.Unlock()
	return nil
}

// Owner returns the owner occupant, if filled.
func (s *Session) Owner() *Occupant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[ownerSlot]
}

// CanFinalize reports whether the mandatory owner slot is filled.
func (s *Session) CanFinalize() bool {
	return s.Owner() != nil
}

// DuplicateVisitors runs the new-visitor duplicate guard: once the typed
// full name reaches three characters, existing visitors and members are
// checked for exact case-insensitive name equality.
func (s *Session) DuplicateVisitors(ctx context.Context, fullName string) ([]models.Visitor, []models.Member, error) {
	name := strings.TrimSpace(fullName)
	if len(name) < minDuplicateLen || s.directory == nil {
		return nil, nil, nil
	}

	visitors, err := s.directory.VisitorsByExactName(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check visitor duplicates: %w", err)
	}
	members, err := s.directory.MembersByExactName(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check member duplicates: %w", err)
	}
	return visitors, members, nil
}

// CreateVisitor creates a new visitor record. When duplicates exist and
// have not been dismissed, creation is withheld and the candidates are
// returned alongside ErrDuplicateVisitor so the operator can pick one
// instead.
func (s *Session) CreateVisitor(ctx context.Context, name, email string, dismissDuplicates bool) (*models.Visitor, []models.Visitor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, ErrVisitorName
	}

	if !dismissDuplicates {
		visitors, members, err := s.DuplicateVisitors(ctx, name)
		if err != nil {
			return nil, nil, err
		}
		if len(visitors) > 0 || len(members) > 0 {
			return nil, visitors, ErrDuplicateVisitor
		}
	}

	visitor, err := s.api.CreateVisitor(ctx, name, strings.TrimSpace(email))
	if err != nil {
		return nil, nil, err
	}
	return visitor, nil, nil
}

// Finalize dispatches to the endpoint selected by provenance. The owner
// slot is mandatory; MarkAsEvent and AssignToStaff are the only paths
// around it.
func (s *Session) Finalize(ctx context.Context) (*Outcome, error) {
	return s.finalize(ctx, events.EventUnmatchedResolved)
}

func (s *Session) finalize(ctx context.Context, eventType string) (*Outcome, error) {
	owner := s.Owner()
	if owner == nil {
		return nil, ErrOwnerRequired
	}

	players := s.additionalPlayers()
	remember := s.RememberEmail()

	var (
		result *models.ResolveResult
		err    error
	)

	switch s.prov.Route {
	case RouteLegacyUnmatched:
		result, err = s.api.ResolveLegacyUnmatched(ctx, s.prov.BookingID, models.ResolveLegacyRequest{
			MemberEmail:   owner.Email,
			RememberEmail: remember,
		})
	case RouteMatchedAwaitingOwner:
		result, err = s.api.AssignWithPlayers(ctx, s.prov.BookingID, models.AssignRequest{
			Owner:             owner.Email,
			AdditionalPlayers: players,
			RememberEmail:     remember,
			OriginalEmail:     s.booking.ImportedEmail,
		})
	case RouteRawExternal:
		result, err = s.api.LinkTrackmanBooking(ctx, models.LinkTrackmanRequest{
			TrackmanBookingID: s.prov.TrackmanID,
			Owner:             owner.Email,
			AdditionalPlayers: players,
			RememberEmail:     remember,
			OriginalEmail:     s.booking.ImportedEmail,
		})
	default:
		return nil, ErrUnknownProvenance
	}

	if err != nil {
		metrics.IncReconcileOutcome(s.prov.Route, "error")
		return nil, err
	}
	metrics.IncReconcileOutcome(s.prov.Route, "ok")

	outcome := &Outcome{
		Route:            s.prov.Route,
		BookingID:        result.BookingID,
		FeesRecalculated: result.FeesRecalculated,
	}
	s.publish(eventType, owner.Email, len(players)+1, outcome)
	s.logger.Info().
		Int64("booking_id", outcome.BookingID).
		Bool("fees_recalculated", outcome.FeesRecalculated).
		Msg("unmatched booking resolved")
	return outcome, nil
}

// MarkAsEvent disposes of the booking as a private event, bypassing the
// owner requirement.
func (s *Session) MarkAsEvent(ctx context.Context) error {
	if err := s.api.MarkAsEvent(ctx, s.prov.BookingID, s.booking.TrackmanID); err != nil {
		metrics.IncReconcileOutcome(s.prov.Route, "error")
		return err
	}
	metrics.IncReconcileOutcome(s.prov.Route, "ok")
	s.publish(events.EventMarkedAsEvent, "", 0, &Outcome{Route: s.prov.Route, BookingID: s.prov.BookingID})
	s.logger.Info().Msg("unmatched booking marked as event")
	return nil
}

// AssignToStaff treats a staff member as the owner with zero additional
// players and zero guest fees.
func (s *Session) AssignToStaff(ctx context.Context, staff models.StaffMember) (*Outcome, error) {
	s.mu.Lock()
	s.slots[ownerSlot] = &Occupant{Kind: OccupantStaff, Name: staff.Name, Email: staff.Email}
	for i := 1; i < slotCount; i++ {
		s.slots[i] = nil
	}
	// Staff assignments never remember the imported email.
	s.rememberEmail = false
	s.mu.Unlock()

	return s.finalize(ctx, events.EventAssignedToStaff)
}

func (s *Session) additionalPlayers() []models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	var players []models.Player
	for i := 1; i < slotCount; i++ {
		occ := s.slots[i]
		if occ == nil {
			continue
		}
		kind := occ.Kind
		if kind == OccupantGuestPlaceholder {
			kind = "guest"
		}
		players = append(players, models.Player{
			Kind:      kind,
			Name:      occ.Name,
			Email:     occ.Email,
			VisitorID: occ.VisitorID,
		})
	}
	return players
}

func (s *Session) publish(eventType, ownerEmail string, playerCount int, outcome *Outcome) {
	if s.bus == nil {
		return
	}
	payload := events.ReconcileEventPayload{
		UnmatchedID:      s.booking.ID,
		TrackmanID:       s.booking.TrackmanID,
		Route:            outcome.Route,
		BookingID:        outcome.BookingID,
		OwnerEmail:       ownerEmail,
		PlayerCount:      playerCount,
		FeesRecalculated: outcome.FeesRecalculated,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
