package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// FlexID tolerates backend payloads that carry ids as either JSON numbers
// or strings ("42" vs 42 vs "review-42").
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// UnmatchedBooking is an externally-ingested booking lacking a confirmed
// member owner. It is destroyed (converted to a normal booking) once
// resolved.
type UnmatchedBooking struct {
	ID               int64     `json:"id"`
	TrackmanID       string    `json:"trackman_booking_id"`
	MatchedBookingID FlexID    `json:"matchedBookingId"`
	IsLegacyReview   bool      `json:"isLegacyReview"`
	ImportedName     string    `json:"importedName"`
	ImportedEmail    string    `json:"importedEmail"`
	Notes            string    `json:"notes,omitempty"`
	Bay              string    `json:"bay"`
	StartTime        time.Time `json:"startTime"`
}

// WebhookEvent is an immutable record of an inbound notification from the
// external booking source.
type WebhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Error      string          `json:"error,omitempty"`
	BookingID  *int64          `json:"bookingId,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// WebhookEventPage is one page of the webhook log.
type WebhookEventPage struct {
	Events []WebhookEvent `json:"events"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// WebhookStats are the aggregate counters shown above the log.
type WebhookStats struct {
	Total     int            `json:"total"`
	Failed    int            `json:"failed"`
	Unmatched int            `json:"unmatched"`
	ByType    map[string]int `json:"byType"`
}

// ResolveResult is the success shape shared by the three finalize routes.
type ResolveResult struct {
	BookingID        int64 `json:"bookingId"`
	FeesRecalculated bool  `json:"feesRecalculated"`
}

// ResolveLegacyRequest is the body of PUT /api/admin/trackman/unmatched/{id}/resolve.
type ResolveLegacyRequest struct {
	MemberEmail   string `json:"memberEmail"`
	RememberEmail bool   `json:"rememberEmail"`
}

// AssignRequest is the body of PUT /api/bookings/{id}/assign-with-players.
type AssignRequest struct {
	Owner             string   `json:"owner"`
	AdditionalPlayers []Player `json:"additional_players"`
	RememberEmail     bool     `json:"rememberEmail"`
	OriginalEmail     string   `json:"originalEmail,omitempty"`
}

// LinkTrackmanRequest is the body of POST /api/bookings/link-trackman-to-member.
type LinkTrackmanRequest struct {
	TrackmanBookingID string   `json:"trackman_booking_id"`
	Owner             string   `json:"owner"`
	AdditionalPlayers []Player `json:"additional_players"`
	RememberEmail     bool     `json:"rememberEmail"`
	OriginalEmail     string   `json:"originalEmail,omitempty"`
}

// Player is one non-owner participant in a finalize payload.
type Player struct {
	Kind      string `json:"kind"` // member, visitor, guest
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	VisitorID int64  `json:"visitorId,omitempty"`
}
