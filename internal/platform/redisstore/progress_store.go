package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/phrazzld/chunkgen/internal/config"
	"github.com/phrazzld/chunkgen/internal/store"
	"github.com/phrazzld/chunkgen/internal/task"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix is used when no key prefix is configured.
const DefaultKeyPrefix = "chunkgen:"

// ProgressStore is a Redis-backed task.ProgressStore.
type ProgressStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *slog.Logger
}

// ProgressStore implements task.ProgressStore
var _ task.ProgressStore = (*ProgressStore)(nil)

// Connect creates a client from cfg and verifies the connection.
func Connect(ctx context.Context, cfg config.RedisStoreConfig, logger *slog.Logger) (*ProgressStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, cfg.KeyPrefix, logger), nil
}

// New wraps an existing client.
func New(client *redis.Client, keyPrefix string, logger *slog.Logger) *ProgressStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressStore{
		client:    client,
		keyPrefix: keyPrefix + "progress:",
		logger:    logger.With("component", "redis_progress_store"),
	}
}

// Close closes the underlying client
func (s *ProgressStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *ProgressStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// recordKey returns the Redis key for a region's record
func (s *ProgressStore) recordKey(region string) string {
	return s.keyPrefix + "data:" + region
}

// regionsKey returns the Redis key for the region index
func (s *ProgressStore) regionsKey() string {
	return s.keyPrefix + "regions"
}

// Save replaces the record for p.Region.
func (s *ProgressStore) Save(ctx context.Context, p task.Progress) error {
	if p.Region == "" {
		return store.NewStoreError("progress", "save", "region is required", store.ErrInvalidEntity)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return store.NewStoreError("progress", "save", "failed to marshal record", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.recordKey(p.Region), data, 0)
	pipe.SAdd(ctx, s.regionsKey(), p.Region)
	if _, err := pipe.Exec(ctx); err != nil {
		return store.NewStoreError("progress", "save", "redis transaction failed", err)
	}
	return nil
}

// Load returns the record for region.
func (s *ProgressStore) Load(ctx context.Context, region string) (task.Progress, error) {
	data, err := s.client.Get(ctx, s.recordKey(region)).Bytes()
	if errors.Is(err, redis.Nil) {
		return task.Progress{}, fmt.Errorf("%w: %s", store.ErrProgressNotFound, region)
	}
	if err != nil {
		return task.Progress{}, store.NewStoreError("progress", "load", "redis get failed", err)
	}

	var p task.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return task.Progress{}, store.NewStoreError("progress", "load", "failed to unmarshal record", err)
	}
	return p, nil
}

// Delete removes the record for region. Missing records are ignored.
func (s *ProgressStore) Delete(ctx context.Context, region string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recordKey(region))
	pipe.SRem(ctx, s.regionsKey(), region)
	if _, err := pipe.Exec(ctx); err != nil {
		return store.NewStoreError("progress", "delete", "redis transaction failed", err)
	}
	return nil
}

// LoadAll returns every record ordered by region. Regions whose record
// has vanished are dropped from the index.
func (s *ProgressStore) LoadAll(ctx context.Context) ([]task.Progress, error) {
	regions, err := s.client.SMembers(ctx, s.regionsKey()).Result()
	if err != nil {
		return nil, store.NewStoreError("progress", "load_all", "redis smembers failed", err)
	}
	sort.Strings(regions)

	records := make([]task.Progress, 0, len(regions))
	for _, region := range regions {
		p, err := s.Load(ctx, region)
		if store.IsNotFoundError(err) {
			s.logger.Warn("dropping stale region from progress index", "region", region)
			if err := s.client.SRem(ctx, s.regionsKey(), region).Err(); err != nil {
				s.logger.Error("failed to drop stale region", "region", region, "error", err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, nil
}
