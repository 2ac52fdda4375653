package directory

import (
	"context"
	"sync"
	"time"

	"teesheet/internal/models"
)

// MemoryDirectoryRepository is the in-process fallback when redis is
// unavailable.
type MemoryDirectoryRepository struct {
	mu       sync.RWMutex
	snapshot *models.DirectorySnapshot
	storedAt time.Time
	ttl      time.Duration
}

func NewMemoryDirectoryRepository(ttl time.Duration) *MemoryDirectoryRepository {
	return &MemoryDirectoryRepository{ttl: ttl}
}

func (r *MemoryDirectoryRepository) GetSnapshot(ctx context.Context) (*models.DirectorySnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot == nil {
		return nil, nil
	}
	if r.ttl > 0 && time.Since(r.storedAt) > r.ttl {
		return nil, nil
	}
	return r.snapshot, nil
}

func (r *MemoryDirectoryRepository) SetSnapshot(ctx context.Context, snap *models.DirectorySnapshot) error {
	r.mu.Lock()
	r.snapshot = snap
	r.storedAt = time.Now()
	r.mu.Unlock()
	return nil
}

func (r *MemoryDirectoryRepository) ClearSnapshot(ctx context.Context) error {
	r.mu.Lock()
	r.snapshot = nil
	r.mu.Unlock()
	return nil
}
