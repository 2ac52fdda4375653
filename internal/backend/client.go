package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"teesheet/internal/config"
	"teesheet/internal/metrics"
	"teesheet/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const sessionCookieName = "admin_session"

// Client is the JSON-over-HTTPS client for the booking backend. The
// backend owns slot assignment and fee computation; the client only
// reflects intent and reads authoritative state back.
type Client struct {
	baseURL      string
	sessionToken string
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       zerolog.Logger
}

// NewClient constructs a client from config. All calls carry the same
// ambient session credentials.
func NewClient(cfg config.BackendConfig, logger *zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "backend").Logger()
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		sessionToken: cfg.SessionToken,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      limiter,
		logger:       base,
	}
}

// FetchRoster returns the full slot/guest/fee state for one booking.
func (c *Client) FetchRoster(ctx context.Context, bookingID int64) (*models.Roster, error) {
	endpoint := fmt.Sprintf("%s/api/admin/booking/%d/members", c.baseURL, bookingID)
	var roster models.Roster
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "fetch roster", nil, &roster); err != nil {
		return nil, err
	}
	roster.BookingID = bookingID
	return &roster, nil
}

// LinkMember assigns a member to a slot. A 400 here may still have
// partially applied server-side; callers refetch regardless.
func (c *Client) LinkMember(ctx context.Context, bookingID int64, slotID int, memberEmail string) error {
	endpoint := fmt.Sprintf("%s/api/admin/booking/%d/members/%d/link", c.baseURL, bookingID, slotID)
	body := map[string]string{"memberEmail": memberEmail}
	return c.doJSON(ctx, http.MethodPut, endpoint, "link member", body, nil)
}

// UnlinkMember clears a non-primary slot's member assignment.
func (c *Client) UnlinkMember(ctx context.Context, bookingID int64, slotID int) error {
	endpoint := fmt.Sprintf("%s/api/admin/booking/%d/members/%d/unlink", c.baseURL, bookingID, slotID)
	return c.doJSON(ctx, http.MethodPut, endpoint, "unlink member", nil, nil)
}

// AddGuest creates a guest occupant. A 409 is not an error: it carries the
// member match the operator has to decide on, and no guest record exists
// yet.
func (c *Client) AddGuest(ctx context.Context, bookingID int64, req models.AddGuestRequest) (*models.AddGuestResult, error) {
	endpoint := fmt.Sprintf("%s/api/admin/booking/%d/guests", c.baseURL, bookingID)

	resp, err := c.send(ctx, http.MethodPost, endpoint, "add guest", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		var body struct {
			MemberMatch *models.MemberMatch `json:"memberMatch"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode add guest conflict: %w", err)
		}
		return &models.AddGuestResult{MemberMatch: body.MemberMatch}, nil
	case resp.StatusCode >= 300:
		return nil, c.apiError(resp, "add guest")
	}

	var result models.AddGuestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode add guest response: %w", err)
	}
	return &result, nil
}

// RemoveGuest deletes a guest occupant, freeing its slot.
func (c *Client) RemoveGuest(ctx context.Context, bookingID, guestID int64) error {
	endpoint := fmt.Sprintf("%s/api/admin/booking/%d/guests/%d", c.baseURL, bookingID, guestID)
	return c.doJSON(ctx, http.MethodDelete, endpoint, "remove guest", nil, nil)
}

// UpdatePlayerCount changes booking capacity (1-4).
func (c *Client) UpdatePlayerCount(ctx context.Context, bookingID int64, playerCount int) error {
	endpoint := fmt.Sprintf("%s/api/admin/booking/%d/player-count", c.baseURL, bookingID)
	body := map[string]int{"playerCount": playerCount}
	return c.doJSON(ctx, http.MethodPatch, endpoint, "update player count", body, nil)
}

// ApplyBillingAction triggers a payment action for one or all participants.
func (c *Client) ApplyBillingAction(ctx context.Context, bookingID int64, req models.BillingActionRequest) error {
	endpoint := fmt.Sprintf("%s/api/bookings/%d/payments", c.baseURL, bookingID)
	return c.doJSON(ctx, http.MethodPatch, endpoint, "billing action", req, nil)
}

// ResolveLegacyUnmatched resolves a legacy-review unmatched record.
func (c *Client) ResolveLegacyUnmatched(ctx context.Context, unmatchedID int64, req models.ResolveLegacyRequest) (*models.ResolveResult, error) {
	endpoint := fmt.Sprintf("%s/api/admin/trackman/unmatched/%d/resolve", c.baseURL, unmatchedID)
	var result struct {
		Booking          *models.Booking `json:"booking"`
		FeesRecalculated bool            `json:"feesRecalculated"`
	}
	if err := c.doJSON(ctx, http.MethodPut, endpoint, "resolve unmatched", req, &result); err != nil {
		return nil, err
	}
	out := &models.ResolveResult{FeesRecalculated: result.FeesRecalculated}
	if result.Booking != nil {
		out.BookingID = result.Booking.ID
	}
	return out, nil
}

// AssignWithPlayers assigns an owner plus additional players to an
// already-matched booking awaiting its owner.
func (c *Client) AssignWithPlayers(ctx context.Context, bookingID int64, req models.AssignRequest) (*models.ResolveResult, error) {
	endpoint := fmt.Sprintf("%s/api/bookings/%d/assign-with-players", c.baseURL, bookingID)
	var result models.ResolveResult
	if err := c.doJSON(ctx, http.MethodPut, endpoint, "assign with players", req, &result); err != nil {
		return nil, err
	}
	if result.BookingID == 0 {
		result.BookingID = bookingID
	}
	return &result, nil
}

// LinkTrackmanBooking links a raw external-source booking that has never
// been represented internally.
func (c *Client) LinkTrackmanBooking(ctx context.Context, req models.LinkTrackmanRequest) (*models.ResolveResult, error) {
	endpoint := fmt.Sprintf("%s/api/bookings/link-trackman-to-member", c.baseURL)
	var result models.ResolveResult
	if err := c.doJSON(ctx, http.MethodPost, endpoint, "link trackman booking", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkAsEvent disposes of an unmatched booking as a private event.
func (c *Client) MarkAsEvent(ctx context.Context, bookingID int64, trackmanID string) error {
	endpoint := fmt.Sprintf("%s/api/bookings/mark-as-event", c.baseURL)
	body := map[string]interface{}{
		"booking_id":          bookingID,
		"trackman_booking_id": trackmanID,
	}
	return c.doJSON(ctx, http.MethodPost, endpoint, "mark as event", body, nil)
}

// SearchMembers queries the member directory.
func (c *Client) SearchMembers(ctx context.Context, query string, limit int) ([]models.Member, error) {
	endpoint := fmt.Sprintf("%s/api/admin/members/search?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), limit)
	var wrap struct {
		Members []models.Member `json:"members"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "search members", nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Members, nil
}

// SearchVisitors queries existing visitor records.
func (c *Client) SearchVisitors(ctx context.Context, query string, limit int) ([]models.Visitor, error) {
	endpoint := fmt.Sprintf("%s/api/admin/visitors/search?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), limit)
	var wrap struct {
		Visitors []models.Visitor `json:"visitors"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "search visitors", nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Visitors, nil
}

// CreateVisitor creates a new visitor record.
func (c *Client) CreateVisitor(ctx context.Context, name, email string) (*models.Visitor, error) {
	endpoint := fmt.Sprintf("%s/api/admin/visitors", c.baseURL)
	body := map[string]string{"name": name, "email": email}
	var visitor models.Visitor
	if err := c.doJSON(ctx, http.MethodPost, endpoint, "create visitor", body, &visitor); err != nil {
		return nil, err
	}
	return &visitor, nil
}

// FetchDirectory returns the full member/visitor/staff directory used to
// seed the cache.
func (c *Client) FetchDirectory(ctx context.Context) (*models.DirectorySnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/admin/directory", c.baseURL)
	var snap models.DirectorySnapshot
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "fetch directory", nil, &snap); err != nil {
		return nil, err
	}
	snap.FetchedAt = time.Now()
	return &snap, nil
}

// ListUnmatched returns the review queue of unmatched bookings.
func (c *Client) ListUnmatched(ctx context.Context) ([]models.UnmatchedBooking, error) {
	endpoint := fmt.Sprintf("%s/api/admin/trackman/unmatched", c.baseURL)
	var wrap struct {
		Bookings []models.UnmatchedBooking `json:"bookings"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "list unmatched", nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Bookings, nil
}

// ListWebhookEvents returns one page of the webhook log.
func (c *Client) ListWebhookEvents(ctx context.Context, limit, offset int) (*models.WebhookEventPage, error) {
	endpoint := fmt.Sprintf("%s/api/admin/trackman-webhooks?limit=%d&offset=%d", c.baseURL, limit, offset)
	var page models.WebhookEventPage
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "list webhook events", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// WebhookStats returns the aggregate counters for the webhook log.
func (c *Client) WebhookStats(ctx context.Context) (*models.WebhookStats, error) {
	endpoint := fmt.Sprintf("%s/api/admin/trackman-webhooks/stats", c.baseURL)
	var stats models.WebhookStats
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "webhook stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListUpcomingActivities returns the tours/events/wellness classes shown on
// the dashboard.
func (c *Client) ListUpcomingActivities(ctx context.Context) ([]models.Activity, error) {
	endpoint := fmt.Sprintf("%s/api/admin/activities/upcoming", c.baseURL)
	var wrap struct {
		Activities []models.Activity `json:"activities"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, "list activities", nil, &wrap); err != nil {
		return nil, err
	}
	return wrap.Activities, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, op string, body, out any) error {
	resp, err := c.send(ctx, method, endpoint, op, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.apiError(resp, op)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, endpoint, op string, body any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to %s: %w", op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncBackend(op, "transport_error")
		c.logger.Error().Err(err).Str("op", op).Msg("backend request failed")
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	metrics.IncBackend(op, statusClass(resp.StatusCode))
	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request")

	return resp, nil
}

func (c *Client) addHeaders(req *http.Request) {
	req.Header.Set("x-request-id", uuid.NewString())
	if c.sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: c.sessionToken})
	}
}

func (c *Client) apiError(resp *http.Response, op string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: op}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}

func statusClass(code int) string {
	switch {
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
