package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"teesheet/internal/config"
	"teesheet/internal/models"

	"github.com/redis/go-redis/v9"
)

const snapshotKey = "directory:snapshot"

type RedisDirectoryRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	return redis.NewClient(options)
}

func NewRedisDirectoryRepository(client *redis.Client, ttl time.Duration) *RedisDirectoryRepository {
	return &RedisDirectoryRepository{client: client, ttl: ttl}
}

func (r *RedisDirectoryRepository) GetSnapshot(ctx context.Context) (*models.DirectorySnapshot, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, snapshotKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get directory snapshot from redis: %w", err)
	}

	var snap models.DirectorySnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal directory snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisDirectoryRepository) SetSnapshot(ctx context.Context, snap *models.DirectorySnapshot) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal directory snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set directory snapshot in redis: %w", err)
	}
	return nil
}

func (r *RedisDirectoryRepository) ClearSnapshot(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("failed to delete directory snapshot from redis: %w", err)
	}
	return nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
