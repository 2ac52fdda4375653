package models

import "time"

// Booking is a single simulator reservation as the backend reports it.
type Booking struct {
	ID                  int64     `json:"id"`
	Bay                 string    `json:"bay"`
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	Notes               string    `json:"notes"`
	OwnerEmail          string    `json:"owner_email"`
	ExpectedPlayerCount int       `json:"expected_player_count"`
}

// SlotMember is a member occupying a numbered slot.
type SlotMember struct {
	SlotID    int    `json:"slotId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Tier      string `json:"tier"`
	IsPrimary bool   `json:"isPrimary"`
}

// Guest is a non-member occupant. Fees are server-computed; the console
// only displays them.
type Guest struct {
	ID            int64  `json:"id"`
	SlotID        int    `json:"slotId"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	FeeCents      int64  `json:"feeCents"`
	FeeNote       string `json:"feeNote,omitempty"`
	UsedGuestPass bool   `json:"usedGuestPass"`
	IsPlaceholder bool   `json:"isPlaceholder"`
}

// GuestPassContext tracks the owner's monthly guest-pass quota.
type GuestPassContext struct {
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// Roster is the authoritative per-booking slot state returned by
// GET /api/admin/booking/{id}/members. It is refetched wholesale after
// every mutation.
type Roster struct {
	BookingID                 int64            `json:"bookingId"`
	PlayerCount               int              `json:"playerCount"`
	Members                   []SlotMember     `json:"members"`
	Guests                    []Guest          `json:"guests"`
	Validation                []string         `json:"validation,omitempty"`
	OwnerGuestPassesRemaining int              `json:"ownerGuestPassesRemaining"`
	TierLimits                map[string]int   `json:"tierLimits,omitempty"`
	GuestPassContext          GuestPassContext `json:"guestPassContext"`
	FinancialSummary          FinancialSummary `json:"financialSummary"`
}

// PrimaryMember returns the occupant of the primary slot, if any.
func (r *Roster) PrimaryMember() *SlotMember {
	for i := range r.Members {
		if r.Members[i].IsPrimary {
			return &r.Members[i]
		}
	}
	return nil
}

// MemberAt returns the member occupying slotID, if any.
func (r *Roster) MemberAt(slotID int) *SlotMember {
	for i := range r.Members {
		if r.Members[i].SlotID == slotID {
			return &r.Members[i]
		}
	}
	return nil
}

// GuestAt returns the guest occupying slotID, if any.
func (r *Roster) GuestAt(slotID int) *Guest {
	for i := range r.Guests {
		if r.Guests[i].SlotID == slotID {
			return &r.Guests[i]
		}
	}
	return nil
}

// MemberMatch is the candidate returned when an add-guest attempt collides
// with an existing member record (the advisory half of the two-phase
// protocol).
type MemberMatch struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Tier  string `json:"tier,omitempty"`
}

// AddGuestRequest is the body of POST /api/admin/booking/{id}/guests.
type AddGuestRequest struct {
	GuestName       string `json:"guestName"`
	GuestEmail      string `json:"guestEmail,omitempty"`
	SlotID          int    `json:"slotId"`
	ForceAddAsGuest bool   `json:"forceAddAsGuest"`
}

// AddGuestResult carries either the applied outcome or, on a 409, the
// member match the operator must decide on. Exactly one side is set.
type AddGuestResult struct {
	GuestPassesRemaining int          `json:"guestPassesRemaining"`
	MemberMatch          *MemberMatch `json:"memberMatch,omitempty"`
}
