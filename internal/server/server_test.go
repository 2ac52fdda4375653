package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"teesheet/internal/backend"
	"teesheet/internal/config"
	"teesheet/internal/events"
	"teesheet/internal/reconcile"
	"teesheet/internal/search"
	"teesheet/internal/store"
	"teesheet/internal/webhooks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves the slice of the booking backend the console talks to.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/admin/booking/42/members", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"playerCount": 2,
			"members": []map[string]any{
				{"slotId": 0, "email": "owner@club.test", "name": "Owner", "isPrimary": true},
				{"slotId": 1, "email": "second@club.test", "name": "Second"},
			},
			"guestPassContext": map[string]int{"remaining": 2, "total": 4},
		})
	})
	mux.HandleFunc("/api/admin/trackman/unmatched", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bookings": []map[string]any{
				{
					"id":               7,
					"isLegacyReview":   true,
					"matchedBookingId": "review-42",
					"importedName":     "J Smith",
					"importedEmail":    "j.smith@club.test",
				},
			},
		})
	})
	mux.HandleFunc("/api/admin/trackman/unmatched/42/resolve", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"booking":          map[string]any{"id": 42},
			"feesRecalculated": true,
		})
	})
	mux.HandleFunc("/api/admin/members/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"members": []map[string]string{{"email": "john@club.test", "name": "John Smith"}},
		})
	})
	mux.HandleFunc("/api/admin/visitors/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"visitors": []map[string]any{{"id": 5, "name": "Jane Doe", "email": "jane@visitors.test"}},
		})
	})
	mux.HandleFunc("/api/admin/activities/upcoming", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"activities": []map[string]any{
				{"id": 1, "kind": "event", "title": "Member Night", "start": time.Now().Add(2 * time.Hour)},
			},
		})
	})
	mux.HandleFunc("/api/admin/trackman-webhooks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"events": []map[string]any{
				{"id": 1, "type": "booking.created", "payload": map[string]any{"x": 1}, "receivedAt": time.Now()},
			},
			"total": 1, "limit": 50, "offset": 0,
		})
	})
	mux.HandleFunc("/api/admin/trackman-webhooks/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": 10, "failed": 1, "unmatched": 2,
			"byType": map[string]int{"booking.created": 8},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) (*Server, *events.EventBus) {
	t.Helper()
	upstream := fakeBackend(t)
	client := backend.NewClient(config.BackendConfig{BaseURL: upstream.URL}, nil)

	auditStore, err := store.Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditStore.Close() })

	bus := events.NewEventBus()
	srv := New(config.AdminConfig{Port: 0}, Deps{
		Backend:  client,
		Search:   search.NewSearcher(client, time.Millisecond, 3, 10, nil),
		Webhooks: webhooks.NewService(client, t.TempDir(), nil),
		Audit:    auditStore,
		Bus:      bus,
	}, nil)
	return srv, bus
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServerHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("x-request-id"))
}

func TestServerRosterEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/bookings/42/roster", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var roster struct {
		BookingID   int64 `json:"bookingId"`
		PlayerCount int   `json:"playerCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roster))
	assert.Equal(t, int64(42), roster.BookingID)
	assert.Equal(t, 2, roster.PlayerCount)

	// Unlinking the primary slot is rejected locally.
	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/bookings/42/slots/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Out-of-range player count is rejected locally too.
	rec = doJSON(t, srv, http.MethodPatch, "/api/v1/bookings/42/player-count", `{"player_count": 9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerRosterBadID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/bookings/zero/roster", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerUnmatchedWorkflow(t *testing.T) {
	srv, bus := newTestServer(t)

	var published []string
	bus.Subscribe(events.EventUnmatchedResolved, func(ev *events.Event) error {
		published = append(published, ev.Type)
		return nil
	})

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/unmatched/7/open", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var opened struct {
		Route         string `json:"route"`
		RememberEmail bool   `json:"remember_email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	assert.Equal(t, reconcile.RouteLegacyUnmatched, opened.Route)
	assert.True(t, opened.RememberEmail)

	// Finalize before an owner is chosen fails.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/unmatched/7/finalize", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/unmatched/7/owner", `{"name": "Owner", "email": "owner@club.test"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"can_finalize":true`)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/unmatched/7/finalize", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"bookingId":42`)
	assert.Equal(t, []string{events.EventUnmatchedResolved}, published)

	// The session is gone once finalized.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/unmatched/7/finalize", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerUnmatchedUnknownID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/unmatched/999/open", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerSearchMembers(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/search/members?q=john", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "john@club.test")

	// Below the minimum query length the panel clears its result list.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/search/members?q=jo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"members":null`)
}

func TestServerSearchVisitors(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/search/visitors?q=jane", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Visitors []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"visitors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Visitors, 1)
	assert.Equal(t, int64(5), resp.Visitors[0].ID)
	assert.Equal(t, "Jane Doe", resp.Visitors[0].Name)
}

func TestServerDashboard(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/dashboard/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tiles []struct {
			Kind  string `json:"kind"`
			Empty bool   `json:"empty"`
		} `json:"tiles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tiles, 3)
	assert.Equal(t, "event", resp.Tiles[0].Kind)
	assert.False(t, resp.Tiles[0].Empty)
}

func TestServerWebhookLog(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/webhooks?limit=50", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking.created")

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/webhooks/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":10`)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/webhooks/export", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var exported struct {
		File string `json:"file"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))
	info, err := os.Stat(exported.File)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestServerAuditLog(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcomes":null`)
}
