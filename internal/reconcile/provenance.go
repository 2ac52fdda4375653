package reconcile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"teesheet/internal/models"
)

// Booking provenance, resolved once when the workflow opens. The finalize
// route is picked from this tag, never re-derived from optional-field
// presence at call time.
const (
	RouteLegacyUnmatched      = "legacy_unmatched"
	RouteMatchedAwaitingOwner = "matched_awaiting_owner"
	RouteRawExternal          = "raw_external"
)

const legacyReviewPrefix = "review-"

var ErrUnknownProvenance = errors.New("booking carries neither an internal id nor an external id")

// Provenance is the tagged union over booking origin. Exactly one of
// BookingID / TrackmanID is meaningful depending on Route.
type Provenance struct {
	Route      string
	BookingID  int64
	TrackmanID string
}

// ResolveProvenance classifies an unmatched booking:
// legacy-review records resolve through the legacy endpoint with their
// numeric id ("review-42" -> 42); a matched booking id routes to
// assign-with-players; otherwise the raw external id routes to
// link-trackman-to-member.
func ResolveProvenance(b *models.UnmatchedBooking) (Provenance, error) {
	matched := strings.TrimSpace(b.MatchedBookingID.String())

	switch {
	case b.IsLegacyReview && matched != "":
		id, err := parseReviewID(matched)
		if err != nil {
			return Provenance{}, err
		}
		return Provenance{Route: RouteLegacyUnmatched, BookingID: id}, nil
	case matched != "":
		id, err := strconv.ParseInt(matched, 10, 64)
		if err != nil {
			return Provenance{}, fmt.Errorf("invalid matched booking id %q: %w", matched, err)
		}
		return Provenance{Route: RouteMatchedAwaitingOwner, BookingID: id}, nil
	case strings.TrimSpace(b.TrackmanID) != "":
		return Provenance{Route: RouteRawExternal, TrackmanID: strings.TrimSpace(b.TrackmanID)}, nil
	default:
		return Provenance{}, ErrUnknownProvenance
	}
}

func parseReviewID(raw string) (int64, error) {
	trimmed := strings.TrimPrefix(raw, legacyReviewPrefix)
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid legacy review id %q: %w", raw, err)
	}
	return id, nil
}
