package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"teesheet/internal/backend"
	"teesheet/internal/config"
	"teesheet/internal/domain"
	"teesheet/internal/reconcile"
	"teesheet/internal/roster"
	"teesheet/internal/search"
	"teesheet/internal/webhooks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Deps are the collaborators behind the admin surface.
type Deps struct {
	Backend   *backend.Client
	Directory domain.DirectoryReader
	Search    *search.Searcher
	Webhooks  *webhooks.Service
	Audit     domain.AuditStore
	Bus       domain.EventPublisher
	Rules     reconcile.PlaceholderRules
}

// Server exposes the admin panel's HTTP surface: roster mutations,
// reconciliation workflow actions, the webhook log, and dashboard
// summaries. It holds one roster manager per open booking and one
// reconciliation session per unmatched booking.
type Server struct {
	cfg    config.AdminConfig
	deps   Deps
	server *http.Server
	auth   *httpAuth
	logger zerolog.Logger

	mu       sync.Mutex
	managers map[int64]*roster.Manager
	sessions map[int64]*reconcile.Session
}

func New(cfg config.AdminConfig, deps Deps, logger *zerolog.Logger) *Server {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "admin").Logger()
	}

	srv := &Server{
		cfg:      cfg,
		deps:     deps,
		logger:   base,
		managers: make(map[int64]*roster.Manager),
		sessions: make(map[int64]*reconcile.Session),
	}
	srv.auth = newHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookings)
	mux.HandleFunc("/api/v1/unmatched", srv.handleUnmatchedList)
	mux.HandleFunc("/api/v1/unmatched/", srv.handleUnmatched)
	mux.HandleFunc("/api/v1/search/members", srv.handleSearchMembers)
	mux.HandleFunc("/api/v1/search/visitors", srv.handleSearchVisitors)
	mux.HandleFunc("/api/v1/webhooks", srv.handleWebhookList)
	mux.HandleFunc("/api/v1/webhooks/stats", srv.handleWebhookStats)
	mux.HandleFunc("/api/v1/webhooks/export", srv.handleWebhookExport)
	mux.HandleFunc("/api/v1/dashboard/summary", srv.handleDashboard)
	mux.HandleFunc("/api/v1/audit", srv.handleAudit)

	handler := srv.loggingMiddleware(srv.auth.wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("admin surface listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// manager returns the roster manager for a booking, creating and priming
// it on first use.
func (s *Server) manager(ctx context.Context, bookingID int64) (*roster.Manager, error) {
	s.mu.Lock()
	m, ok := s.managers[bookingID]
	if !ok {
		m = roster.NewManager(bookingID, s.deps.Backend, s.deps.Directory, &s.logger)
		s.managers[bookingID] = m
	}
	s.mu.Unlock()

	if !ok {
		if err := m.Refresh(ctx); err != nil {
			s.mu.Lock()
			delete(s.managers, bookingID)
			s.mu.Unlock()
			return nil, err
		}
	}
	return m, nil
}

func (s *Server) session(id int64) (*reconcile.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) storeSession(id int64, sess *reconcile.Session) {
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
}

func (s *Server) dropSession(id int64) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("x-request-id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("x-request-id", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// pathParts splits a URL path below a prefix into its segments.
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
