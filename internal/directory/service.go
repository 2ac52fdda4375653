package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"teesheet/internal/domain"
	"teesheet/internal/models"

	"github.com/rs/zerolog"
)

// Service is the explicit read-only directory dependency handed to the
// roster manager and reconciliation sessions, replacing the panel's old
// ambient shared member list. Reads come from the cached snapshot; Refresh
// reseeds it from the backend.
type Service struct {
	api    domain.DirectoryAPI
	repo   domain.DirectoryRepository
	logger zerolog.Logger
}

func NewService(api domain.DirectoryAPI, repo domain.DirectoryRepository, logger *zerolog.Logger) *Service {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "directory").Logger()
	}
	return &Service{api: api, repo: repo, logger: base}
}

// Refresh fetches the full directory from the backend and stores it.
func (s *Service) Refresh(ctx context.Context) error {
	snap, err := s.api.FetchDirectory(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh directory: %w", err)
	}
	if err := s.repo.SetSnapshot(ctx, snap); err != nil {
		return err
	}
	s.logger.Info().
		Int("members", len(snap.Members)).
		Int("visitors", len(snap.Visitors)).
		Int("staff", len(snap.Staff)).
		Msg("directory snapshot refreshed")
	return nil
}

// RunRefresher refreshes the snapshot on an interval until ctx is done.
func (s *Service) RunRefresher(ctx context.Context, interval time.Duration) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial directory refresh failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error().Err(err).Msg("directory refresh failed")
			}
		}
	}
}

// MembersMatching returns members whose name or email contains the query,
// case-insensitively. Used by quick-add.
func (s *Service) MembersMatching(ctx context.Context, query string, limit int) ([]models.Member, error) {
	snap, err := s.snapshot(ctx)
	if err != nil || snap == nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	var out []models.Member
	for _, m := range snap.Members {
		if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.Email), q) {
			out = append(out, m)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// MembersByExactName returns members whose full name equals fullName,
// ignoring case. Used by the duplicate-visitor guard.
func (s *Service) MembersByExactName(ctx context.Context, fullName string) ([]models.Member, error) {
	snap, err := s.snapshot(ctx)
	if err != nil || snap == nil {
		return nil, err
	}

	target := strings.ToLower(strings.TrimSpace(fullName))
	var out []models.Member
	for _, m := range snap.Members {
		if strings.ToLower(strings.TrimSpace(m.Name)) == target {
			out = append(out, m)
		}
	}
	return out, nil
}

// VisitorsByExactName returns visitors whose full name equals fullName,
// ignoring case.
func (s *Service) VisitorsByExactName(ctx context.Context, fullName string) ([]models.Visitor, error) {
	snap, err := s.snapshot(ctx)
	if err != nil || snap == nil {
		return nil, err
	}

	target := strings.ToLower(strings.TrimSpace(fullName))
	var out []models.Visitor
	for _, v := range snap.Visitors {
		if strings.ToLower(strings.TrimSpace(v.Name)) == target {
			out = append(out, v)
		}
	}
	return out, nil
}

// Staff returns the cached staff list.
func (s *Service) Staff(ctx context.Context) ([]models.StaffMember, error) {
	snap, err := s.snapshot(ctx)
	if err != nil || snap == nil {
		return nil, err
	}
	return snap.Staff, nil
}

func (s *Service) snapshot(ctx context.Context) (*models.DirectorySnapshot, error) {
	snap, err := s.repo.GetSnapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read directory snapshot")
		return nil, err
	}
	return snap, nil
}
