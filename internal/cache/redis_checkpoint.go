package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scmclimited/deep-rag-core/internal/graph"
)

// redisCheckpointPrefix namespaces keys so the checkpoint store can share a
// Redis instance with other callers without key collisions.
const redisCheckpointPrefix = "ragcore:checkpoint:"

// RedisCheckpointStore implements graph.CheckpointStore against Redis,
// for deployments that want thread checkpoints available to every runner
// replica without a round trip to Postgres on every graph step.
//
// It's a drop-in alternative to the Postgres-backed checkpoint repository,
// not a cache in front of it: callers pick one or the other as their
// graph.CheckpointStore, since the two are not kept in sync.
type RedisCheckpointStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Compile-time check.
var _ graph.CheckpointStore = (*RedisCheckpointStore)(nil)

// NewRedisCheckpointStore connects to the Redis instance at addr. ttl bounds
// how long an abandoned thread's checkpoint survives; pass 0 to keep
// checkpoints until explicitly overwritten.
func NewRedisCheckpointStore(addr, password string, db int, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Load returns the saved state for threadID, or (nil, nil) if no checkpoint
// exists or it expired.
func (s *RedisCheckpointStore) Load(ctx context.Context, threadID string) (*graph.State, error) {
	raw, err := s.client.Get(ctx, redisCheckpointPrefix+threadID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache.RedisCheckpointStore.Load: %w", err)
	}

	var state graph.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("cache.RedisCheckpointStore.Load: decode state: %w", err)
	}
	return &state, nil
}

// Save persists state under threadID, overwriting any prior checkpoint.
func (s *RedisCheckpointStore) Save(ctx context.Context, threadID string, state graph.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cache.RedisCheckpointStore.Save: encode state: %w", err)
	}

	if err := s.client.Set(ctx, redisCheckpointPrefix+threadID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache.RedisCheckpointStore.Save: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisCheckpointStore) Close() error {
	return s.client.Close()
}
