package directory

import (
	"context"
	"sync/atomic"
	"time"

	"teesheet/internal/domain"
	"teesheet/internal/models"

	"github.com/rs/zerolog"
)

// FailoverDirectoryRepository prefers the primary (redis) and falls back
// to memory when it errors, probing the primary again after a minute.
type FailoverDirectoryRepository struct {
	primary   domain.DirectoryRepository
	fallback  domain.DirectoryRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverDirectoryRepository(primary, fallback domain.DirectoryRepository, logger *zerolog.Logger) *FailoverDirectoryRepository {
	return &FailoverDirectoryRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverDirectoryRepository) GetSnapshot(ctx context.Context) (*models.DirectorySnapshot, error) {
	if !r.isDown.Load() {
		snap, err := r.primary.GetSnapshot(ctx)
		if err == nil {
			return snap, nil
		}
		r.markDown(err)
	}

	if r.shouldProbe() {
		snap, err := r.primary.GetSnapshot(ctx)
		if err == nil {
			r.isDown.Store(false)
			return snap, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetSnapshot(ctx)
}

func (r *FailoverDirectoryRepository) SetSnapshot(ctx context.Context, snap *models.DirectorySnapshot) error {
	// The fallback always gets the write so a later failover still has
	// data to serve.
	_ = r.fallback.SetSnapshot(ctx, snap)

	if !r.isDown.Load() {
		if err := r.primary.SetSnapshot(ctx, snap); err != nil {
			r.markDown(err)
			return nil
		}
	}
	return nil
}

func (r *FailoverDirectoryRepository) ClearSnapshot(ctx context.Context) error {
	_ = r.fallback.ClearSnapshot(ctx)
	if !r.isDown.Load() {
		if err := r.primary.ClearSnapshot(ctx); err != nil {
			r.markDown(err)
		}
	}
	return nil
}

func (r *FailoverDirectoryRepository) markDown(err error) {
	if r.logger != nil {
		r.logger.Error().Err(err).Msg("Primary directory repository failed, falling back to memory")
	}
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverDirectoryRepository) shouldProbe() bool {
	if !r.isDown.Load() {
		return false
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}
