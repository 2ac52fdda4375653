package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"teesheet/internal/backend"
	"teesheet/internal/dashboard"
	"teesheet/internal/metrics"
	"teesheet/internal/models"
	"teesheet/internal/reconcile"
	"teesheet/internal/roster"
)

// errStatus maps service errors to HTTP status codes. Backend API errors
// pass through with their original status and verbatim message.
func errStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	switch {
	case errors.Is(err, roster.ErrOperationPending):
		return http.StatusConflict
	case errors.Is(err, reconcile.ErrDuplicateVisitor):
		return http.StatusConflict
	case errors.Is(err, roster.ErrNoRoster):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrPrimarySlot),
		errors.Is(err, roster.ErrPlayerCount),
		errors.Is(err, roster.ErrSlotOccupied),
		errors.Is(err, roster.ErrUnknownBillingAction),
		errors.Is(err, reconcile.ErrOwnerRequired),
		errors.Is(err, reconcile.ErrPlayerIndex),
		errors.Is(err, reconcile.ErrVisitorName),
		errors.Is(err, reconcile.ErrUnknownProvenance):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// handleBookings routes /api/v1/bookings/{id}/... to roster operations.
func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/v1/bookings/")
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	bookingID, err := parseID(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.manager(r.Context(), bookingID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}

	switch {
	case parts[1] == "roster" && len(parts) == 2:
		s.handleRoster(w, r, m)
	case parts[1] == "slots" && len(parts) == 4 && parts[3] == "link":
		s.handleLinkMember(w, r, m, parts[2])
	case parts[1] == "slots" && len(parts) == 3:
		s.handleUnlinkMember(w, r, m, parts[2])
	case parts[1] == "guests" && len(parts) == 2:
		s.handleAddGuest(w, r, m)
	case parts[1] == "guests" && len(parts) == 3:
		s.handleRemoveGuest(w, r, m, parts[2])
	case parts[1] == "player-count" && len(parts) == 2:
		s.handlePlayerCount(w, r, m)
	case parts[1] == "owner" && len(parts) == 2:
		s.handleReassignOwner(w, r, m)
	case parts[1] == "billing" && len(parts) == 2:
		s.handleBilling(w, r, m)
	case parts[1] == "quick-add" && len(parts) == 2:
		s.handleQuickAdd(w, r, m)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request, m *roster.Manager) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("roster")

	if err := m.Refresh(r.Context()); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	snapshot, err := m.Roster()
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleLinkMember(w http.ResponseWriter, r *http.Request, m *roster.Manager, rawSlot string) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("link_member")

	slotID, err := strconv.Atoi(rawSlot)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	var body struct {
		MemberEmail string `json:"member_email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := m.LinkMember(r.Context(), slotID, body.MemberEmail); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.writeRoster(w, m)
}

func (s *Server) handleUnlinkMember(w http.ResponseWriter, r *http.Request, m *roster.Manager, rawSlot string) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("unlink_member")

	slotID, err := strconv.Atoi(rawSlot)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	if err := m.UnlinkMember(r.Context(), slotID); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.writeRoster(w, m)
}

func (s *Server) handleAddGuest(w http.ResponseWriter, r *http.Request, m *roster.Manager) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("add_guest")

	var body struct {
		SlotID int    `json:"slot_id"`
		Name   string `json:"name"`
		Email  string `json:"email"`
		Force  bool   `json:"force"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	match, err := m.AddGuest(r.Context(), body.SlotID, body.Name, body.Email, body.Force)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	if match != nil {
		// Advisory conflict: nothing was created. The caller either forces
		// the add or links the matched member instead.
		writeJSON(w, http.StatusConflict, map[string]any{"member_match": match})
		return
	}
	s.writeRoster(w, m)
}

func (s *Server) handleRemoveGuest(w http.ResponseWriter, r *http.Request, m *roster.Manager, rawGuest string) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("remove_guest")

	guestID, err := parseID(rawGuest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := m.RemoveGuest(r.Context(), guestID); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.writeRoster(w, m)
}

func (s *Server) handlePlayerCount(w http.ResponseWriter, r *http.Request, m *roster.Manager) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("player_count")

	var body struct {
		PlayerCount int `json:"player_count"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := m.UpdatePlayerCount(r.Context(), body.PlayerCount); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.writeRoster(w, m)
}

func (s *Server) handleReassignOwner(w http.ResponseWriter, r *http.Request, m *roster.Manager) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("reassign_owner")

	var body struct {
		MemberEmail string `json:"member_email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := m.ReassignOwner(r.Context(), body.MemberEmail); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.writeRoster(w, m)
}

func (s *Server) handleBilling(w http.ResponseWriter, r *http.Request, m *roster.Manager) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("billing")

	var body struct {
		ParticipantID string `json:"participant_id"`
		Action        string `json:"action"`
		Reason        string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := m.ApplyBilling(r.Context(), body.ParticipantID, body.Action, body.Reason); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.writeRoster(w, m)
}

func (s *Server) handleQuickAdd(w http.ResponseWriter, r *http.Request, m *roster.Manager) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("quick_add")

	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	candidates, err := m.QuickAddCandidates(r.Context(), query, limit)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) writeRoster(w http.ResponseWriter, m *roster.Manager) {
	snapshot, err := m.Roster()
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleUnmatchedList returns the reconciliation work queue.
func (s *Server) handleUnmatchedList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("unmatched_list")

	bookings, err := s.deps.Backend.ListUnmatched(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unmatched": bookings})
}

// handleUnmatched routes /api/v1/unmatched/{id}/... to the workflow.
func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/api/v1/unmatched/")
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := parseID(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if parts[1] == "open" && len(parts) == 2 {
		s.handleSessionOpen(w, r, id)
		return
	}

	sess, ok := s.session(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no open session for this booking")
		return
	}

	switch {
	case parts[1] == "owner" && len(parts) == 2:
		s.handleSessionOwner(w, r, sess)
	case parts[1] == "players" && len(parts) == 3:
		s.handleSessionPlayer(w, r, sess, parts[2])
	case parts[1] == "remember-email" && len(parts) == 2:
		s.handleSessionRemember(w, r, sess)
	case parts[1] == "visitors" && len(parts) == 2:
		s.handleSessionVisitor(w, r, sess)
	case parts[1] == "duplicates" && len(parts) == 2:
		s.handleSessionDuplicates(w, r, sess)
	case parts[1] == "finalize" && len(parts) == 2:
		s.handleSessionFinalize(w, r, sess, id)
	case parts[1] == "mark-event" && len(parts) == 2:
		s.handleSessionMarkEvent(w, r, sess, id)
	case parts[1] == "assign-staff" && len(parts) == 2:
		s.handleSessionAssignStaff(w, r, sess, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleSessionOpen(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("session_open")

	bookings, err := s.deps.Backend.ListUnmatched(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}

	var booking *models.UnmatchedBooking
	for i := range bookings {
		if bookings[i].ID == id {
			booking = &bookings[i]
			break
		}
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "unmatched booking not found")
		return
	}

	sess, err := reconcile.NewSession(*booking, s.deps.Backend, s.deps.Directory, s.deps.Bus, s.deps.Rules, &s.logger)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.storeSession(id, sess)

	writeJSON(w, http.StatusOK, map[string]any{
		"booking":        booking,
		"route":          sess.Provenance().Route,
		"remember_email": sess.RememberEmail(),
	})
}

func (s *Server) handleSessionOwner(w http.ResponseWriter, r *http.Request, sess *reconcile.Session) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("session_owner")

	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	sess.SetOwnerMember(models.Member{Name: body.Name, Email: body.Email})
	writeJSON(w, http.StatusOK, map[string]bool{"can_finalize": sess.CanFinalize()})
}

func (s *Server) handleSessionPlayer(w http.ResponseWriter, r *http.Request, sess *reconcile.Session, rawIndex string) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player index")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		metrics.IncAdmin("session_player_clear")
		if err := sess.ClearPlayer(index); err != nil {
			writeError(w, errStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
	case http.MethodPut:
		metrics.IncAdmin("session_player")
		var body struct {
			Kind      string `json:"kind"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			VisitorID int64  `json:"visitor_id"`
		}
		if !decodeBody(w, r, &body) {
			return
		}

		switch body.Kind {
		case reconcile.OccupantMember:
			err = sess.SetPlayerMember(index, models.Member{Name: body.Name, Email: body.Email})
		case reconcile.OccupantVisitor:
			err = sess.SetPlayerVisitor(index, models.Visitor{ID: body.VisitorID, Name: body.Name, Email: body.Email})
		case reconcile.OccupantGuestPlaceholder:
			err = sess.SetPlayerPlaceholder(index, body.Name)
		default:
			writeError(w, http.StatusBadRequest, "unknown occupant kind")
			return
		}
		if err != nil {
			writeError(w, errStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"can_finalize": sess.CanFinalize()})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSessionRemember(w http.ResponseWriter, r *http.Request, sess *reconcile.Session) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("session_remember")

	var body struct {
		Value bool `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	sess.SetRememberEmail(body.Value)
	writeJSON(w, http.StatusOK, map[string]bool{"remember_email": body.Value})
}

func (s *Server) handleSessionVisitor(w http.ResponseWriter, r *http.Request, sess *reconcile.Session) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("session_visitor")

	var body struct {
		Name              string `json:"name"`
		Email             string `json:"email"`
		DismissDuplicates bool   `json:"dismiss_duplicates"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	visitor, duplicates, err := sess.CreateVisitor(r.Context(), body.Name, body.Email, body.DismissDuplicates)
	if err != nil {
		if errors.Is(err, reconcile.ErrDuplicateVisitor) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":      err.Error(),
				"duplicates": duplicates,
			})
			return
		}
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, visitor)
}

func (s *Server) handleSessionDuplicates(w http.ResponseWriter, r *http.Request, sess *reconcile.Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("session_duplicates")

	visitors, members, err := sess.DuplicateVisitors(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visitors": visitors, "members": members})
}

func (s *Server) handleSessionFinalize(w http.ResponseWriter, r *http.Request, sess *reconcile.Session, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("session_finalize")

	outcome, err := sess.Finalize(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.dropSession(id)
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleSessionMarkEvent(w http.ResponseWriter, r *http.Request, sess *reconcile.Session, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("session_mark_event")

	if err := sess.MarkAsEvent(r.Context()); err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.dropSession(id)
	writeJSON(w, http.StatusOK, map[string]bool{"marked": true})
}

func (s *Server) handleSessionAssignStaff(w http.ResponseWriter, r *http.Request, sess *reconcile.Session, id int64) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("session_assign_staff")

	var body struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	outcome, err := sess.AssignToStaff(r.Context(), models.StaffMember{ID: body.ID, Name: body.Name, Email: body.Email})
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	s.dropSession(id)
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleSearchMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("search_members")

	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	members, ok, err := s.deps.Search.Members(r.Context(), query, limit)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	if !ok {
		// Superseded by a newer keystroke; nothing to render.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *Server) handleSearchVisitors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("search_visitors")

	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	visitors, ok, err := s.deps.Search.Visitors(r.Context(), query, limit)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visitors": visitors})
}

func (s *Server) handleWebhookList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("webhook_list")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := s.deps.Webhooks.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleWebhookStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("webhook_stats")

	stats, err := s.deps.Webhooks.Stats(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWebhookExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("webhook_export")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	path, err := s.deps.Webhooks.ExportLog(r.Context(), limit)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": path})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("dashboard")

	items, err := s.deps.Backend.ListUpcomingActivities(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	tiles := dashboard.Summarize(items, time.Now(), time.Local)
	writeJSON(w, http.StatusOK, map[string]any{"tiles": tiles})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncAdmin("audit")

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.deps.Audit.ListOutcomes(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": records})
}
