package webhooks

import (
	"context"
	"fmt"

	"teesheet/internal/domain"
	"teesheet/internal/models"

	"github.com/rs/zerolog"
)

const defaultPageSize = 50

// Service pages through the immutable webhook event log and produces the
// aggregate counters shown above it.
type Service struct {
	api        domain.WebhookAPI
	exportPath string
	logger     zerolog.Logger
}

func NewService(api domain.WebhookAPI, exportPath string, logger *zerolog.Logger) *Service {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "webhooks").Logger()
	}
	return &Service{api: api, exportPath: exportPath, logger: base}
}

// List returns one page of webhook events.
func (s *Service) List(ctx context.Context, limit, offset int) (*models.WebhookEventPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	page, err := s.api.ListWebhookEvents(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	return page, nil
}

// Stats returns the aggregate counters.
func (s *Service) Stats(ctx context.Context) (*models.WebhookStats, error) {
	stats, err := s.api.WebhookStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook stats: %w", err)
	}
	return stats, nil
}
