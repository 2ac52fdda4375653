package directory

import (
	"context"
	"testing"
	"time"

	"teesheet/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisRepositoryRoundTrip(t *testing.T) {
	repo := NewRedisDirectoryRepository(testRedis(t), time.Hour)
	ctx := context.Background()

	// Empty cache is a nil snapshot, not an error.
	snap, err := repo.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, repo.SetSnapshot(ctx, testSnapshot()))

	snap, err = repo.GetSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Members, 3)
	assert.Len(t, snap.Visitors, 2)

	require.NoError(t, repo.ClearSnapshot(ctx))
	snap, err = repo.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRedisRepositoryCorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, mr.Set(snapshotKey, "not json"))

	repo := NewRedisDirectoryRepository(client, time.Hour)
	_, err := repo.GetSnapshot(context.Background())
	assert.Error(t, err)
}

func TestFailoverFallsBackWhenPrimaryDies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	primary := NewRedisDirectoryRepository(client, time.Hour)
	fallback := NewMemoryDirectoryRepository(time.Hour)
	repo := NewFailoverDirectoryRepository(primary, fallback, nil)
	ctx := context.Background()

	require.NoError(t, repo.SetSnapshot(ctx, testSnapshot()))

	snap, err := repo.GetSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)

	mr.Close()

	// Primary is gone; reads come from the memory fallback.
	snap, err = repo.GetSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Len(t, snap.Members, 3)

	// Writes still land in the fallback without erroring.
	require.NoError(t, repo.SetSnapshot(ctx, &models.DirectorySnapshot{}))
	snap, err = repo.GetSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Members)
}
