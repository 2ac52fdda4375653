package roster

import (
	"context"
	"errors"
	"strings"
	"sync"

	"teesheet/internal/domain"
	"teesheet/internal/metrics"
	"teesheet/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrOperationPending means another operation on the same entity is
	// still in flight; the caller simply retries after it settles.
	ErrOperationPending = errors.New("operation already in flight for this target")

	// ErrPrimarySlot guards the owner slot: it can be reassigned but never
	// cleared through the occupant-removal path.
	ErrPrimarySlot = errors.New("the primary slot cannot be unlinked, only reassigned")

	ErrPlayerCount  = errors.New("player count must be between 1 and 4")
	ErrNoRoster     = errors.New("roster has not been loaded yet")
	ErrSlotOccupied = errors.New("slot is occupied by a guest; remove the guest first")
)

const (
	minPlayerCount = 1
	maxPlayerCount = 4
)

// Manager presents and mutates the slot/guest roster for one booking. It
// never computes outcomes locally: every mutation goes to the backend and
// the roster is refetched wholesale afterwards, including after ambiguous
// failures where the server may have partially applied the change.
type Manager struct {
	bookingID int64
	api       domain.RosterAPI
	directory domain.DirectoryReader
	logger    zerolog.Logger

	inflight inflightTracker

	mu     sync.RWMutex
	roster *models.Roster
}

// NewManager builds a manager for one booking. The directory is the
// injected read-only member list used for quick-add matching.
func NewManager(bookingID int64, api domain.RosterAPI, directory domain.DirectoryReader, logger *zerolog.Logger) *Manager {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "roster").Int64("booking_id", bookingID).Logger()
	}
	return &Manager{
		bookingID: bookingID,
		api:       api,
		directory: directory,
		logger:    base,
	}
}

// BookingID returns the booking this manager is bound to.
func (m *Manager) BookingID() int64 { return m.bookingID }

// Roster returns a copy of the last fetched snapshot.
func (m *Manager) Roster() (models.Roster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.roster == nil {
		return models.Roster{}, ErrNoRoster
	}
	out := *m.roster
	out.Members = append([]models.SlotMember(nil), m.roster.Members...)
	out.Guests = append([]models.Guest(nil), m.roster.Guests...)
	out.FinancialSummary = m.roster.FinancialSummary.Clone()
	return out, nil
}

// Refresh refetches the authoritative roster from the backend.
func (m *Manager) Refresh(ctx context.Context) error {
	roster, err := m.api.FetchRoster(ctx, m.bookingID)
	if err != nil {
		return err
	}
	m.applyRoster(roster)
	return nil
}

// applyRoster installs a server snapshot, clamping the guest-pass counter
// so remaining never exceeds total.
func (m *Manager) applyRoster(roster *models.Roster) {
	if roster.GuestPassContext.Remaining > roster.GuestPassContext.Total {
		m.logger.Warn().
			Int("remaining", roster.GuestPassContext.Remaining).
			Int("total", roster.GuestPassContext.Total).
			Msg("guest pass counter exceeded total; clamping")
		roster.GuestPassContext.Remaining = roster.GuestPassContext.Total
	}
	m.mu.Lock()
	m.roster = roster
	m.mu.Unlock()
}

// LinkMember assigns a member to a slot. A slot held by a guest is
// rejected locally; the guest must be removed first. A 400 response may
// carry a partial server-side effect, so the roster is refreshed whether
// or not the call succeeded and the backend's error string is returned
// unchanged.
func (m *Manager) LinkMember(ctx context.Context, slotID int, memberEmail string) error {
	if m.guestOccupies(slotID) {
		return ErrSlotOccupied
	}

	key := slotKey(slotID)
	if !m.inflight.begin(key) {
		return ErrOperationPending
	}
	defer m.inflight.end(key)

	err := m.api.LinkMember(ctx, m.bookingID, slotID, memberEmail)

	// Refresh regardless: the server may have applied the change before
	// rejecting it. Full refetch is the recovery mechanism.
	if rerr := m.Refresh(ctx); rerr != nil {
		m.logger.Error().Err(rerr).Int("slot_id", slotID).Msg("roster refresh after link failed")
	}

	if err != nil {
		metrics.IncRosterMutation("link_member", "error")
		if IsDifferentMemberConflict(err) {
			m.logger.Warn().Err(err).Int("slot_id", slotID).Msg("slot held by a different member")
		}
		return err
	}

	metrics.IncRosterMutation("link_member", "ok")
	m.logger.Info().Int("slot_id", slotID).Str("member", memberEmail).Msg("member linked")
	return nil
}

// UnlinkMember clears a non-primary slot. Unlink targeting the primary
// slot is rejected locally without a backend call.
func (m *Manager) UnlinkMember(ctx context.Context, slotID int) error {
	if m.isPrimarySlot(slotID) {
		return ErrPrimarySlot
	}

	key := slotKey(slotID)
	if !m.inflight.begin(key) {
		return ErrOperationPending
	}
	defer m.inflight.end(key)

	err := m.api.UnlinkMember(ctx, m.bookingID, slotID)

	if rerr := m.Refresh(ctx); rerr != nil {
		m.logger.Error().Err(rerr).Int("slot_id", slotID).Msg("roster refresh after unlink failed")
	}

	if err != nil {
		metrics.IncRosterMutation("unlink_member", "error")
		return err
	}
	metrics.IncRosterMutation("unlink_member", "ok")
	return nil
}

// AddGuest creates a guest occupant using the two-phase confirmation
// protocol: when the name/email matches an existing member and force is
// false, the returned MemberMatch is a decision point — no guest record
// was created, and the caller either re-invokes with force=true or links
// the matched member instead.
func (m *Manager) AddGuest(ctx context.Context, slotID int, name, email string, force bool) (*models.MemberMatch, error) {
	key := slotKey(slotID)
	if !m.inflight.begin(key) {
		return nil, ErrOperationPending
	}
	defer m.inflight.end(key)

	result, err := m.api.AddGuest(ctx, m.bookingID, models.AddGuestRequest{
		GuestName:       strings.TrimSpace(name),
		GuestEmail:      strings.TrimSpace(email),
		SlotID:          slotID,
		ForceAddAsGuest: force,
	})
	if err != nil {
		metrics.IncRosterMutation("add_guest", "error")
		// The attempt may have failed after a partial effect; resync.
		if rerr := m.Refresh(ctx); rerr != nil {
			m.logger.Error().Err(rerr).Int("slot_id", slotID).Msg("roster refresh after add guest failed")
		}
		return nil, err
	}

	if result.MemberMatch != nil {
		// Advisory pass: nothing was mutated server-side.
		metrics.IncRosterMutation("add_guest", "conflict")
		return result.MemberMatch, nil
	}

	if rerr := m.Refresh(ctx); rerr != nil {
		m.logger.Error().Err(rerr).Int("slot_id", slotID).Msg("roster refresh after add guest failed")
	}
	metrics.IncRosterMutation("add_guest", "ok")
	m.logger.Info().
		Int("slot_id", slotID).
		Int("guest_passes_remaining", result.GuestPassesRemaining).
		Msg("guest added")
	return nil, nil
}

// RemoveGuest deletes a guest occupant, freeing its slot.
func (m *Manager) RemoveGuest(ctx context.Context, guestID int64) error {
	key := guestKey(guestID)
	if !m.inflight.begin(key) {
		return ErrOperationPending
	}
	defer m.inflight.end(key)

	err := m.api.RemoveGuest(ctx, m.bookingID, guestID)

	if rerr := m.Refresh(ctx); rerr != nil {
		m.logger.Error().Err(rerr).Int64("guest_id", guestID).Msg("roster refresh after remove guest failed")
	}

	if err != nil {
		metrics.IncRosterMutation("remove_guest", "error")
		return err
	}
	metrics.IncRosterMutation("remove_guest", "ok")
	return nil
}

// ReassignOwner swaps the primary slot's occupant. It relinks the primary
// slot in place so the slot is never briefly empty.
func (m *Manager) ReassignOwner(ctx context.Context, newMemberEmail string) error {
	m.mu.RLock()
	var primarySlot int
	found := false
	if m.roster != nil {
		if p := m.roster.PrimaryMember(); p != nil {
			primarySlot = p.SlotID
			found = true
		}
	}
	m.mu.RUnlock()
	if !found {
		return ErrNoRoster
	}

	if !m.inflight.begin(keyOwner) {
		return ErrOperationPending
	}
	defer m.inflight.end(keyOwner)

	err := m.api.LinkMember(ctx, m.bookingID, primarySlot, newMemberEmail)

	if rerr := m.Refresh(ctx); rerr != nil {
		m.logger.Error().Err(rerr).Msg("roster refresh after owner reassign failed")
	}

	if err != nil {
		metrics.IncRosterMutation("reassign_owner", "error")
		return err
	}
	metrics.IncRosterMutation("reassign_owner", "ok")
	m.logger.Info().Str("owner", newMemberEmail).Msg("owner reassigned")
	return nil
}

// UpdatePlayerCount changes booking capacity. Calling it with the current
// count is a no-op without a backend round trip.
func (m *Manager) UpdatePlayerCount(ctx context.Context, playerCount int) error {
	if playerCount < minPlayerCount || playerCount > maxPlayerCount {
		return ErrPlayerCount
	}

	m.mu.RLock()
	unchanged := m.roster != nil && m.roster.PlayerCount == playerCount
	m.mu.RUnlock()
	if unchanged {
		return nil
	}

	if !m.inflight.begin(keyPlayerCount) {
		return ErrOperationPending
	}
	defer m.inflight.end(keyPlayerCount)

	err := m.api.UpdatePlayerCount(ctx, m.bookingID, playerCount)

	// Fees for slots that fell inside/outside capacity are recomputed
	// server-side; refetch picks them up.
	if rerr := m.Refresh(ctx); rerr != nil {
		m.logger.Error().Err(rerr).Msg("roster refresh after player count change failed")
	}

	if err != nil {
		metrics.IncRosterMutation("player_count", "error")
		return err
	}
	metrics.IncRosterMutation("player_count", "ok")
	return nil
}

// QuickAddCandidates returns directory members matching the typed name or
// email, for the quick-add flow.
func (m *Manager) QuickAddCandidates(ctx context.Context, query string, limit int) ([]models.Member, error) {
	if m.directory == nil {
		return nil, nil
	}
	return m.directory.MembersMatching(ctx, query, limit)
}

func (m *Manager) guestOccupies(slotID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roster != nil && m.roster.GuestAt(slotID) != nil
}

func (m *Manager) isPrimarySlot(slotID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.roster == nil {
		return false
	}
	member := m.roster.MemberAt(slotID)
	return member != nil && member.IsPrimary
}

// IsDifferentMemberConflict recognizes the 400 where a link hit a slot
// already held by another member; only this class of error surfaces a
// visible warning, though the raw message is always returned unchanged.
func IsDifferentMemberConflict(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "different member")
}

// Busy reports whether the control for slotID currently has an operation
// in flight.
func (m *Manager) Busy(slotID int) bool {
	return m.inflight.busy(slotKey(slotID))
}
