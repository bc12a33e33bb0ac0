package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stacklok/pgsearch-sync/internal/retry"
)

// DefaultRedisKey is the key holding the snapshot in Redis
const DefaultRedisKey = "data"

// RedisStorage persists the snapshot as a JSON string under a single Redis key
type RedisStorage struct {
	client redis.Cmdable
	key    string
	policy *retry.Policy
}

// RedisOption configures a RedisStorage
type RedisOption func(*RedisStorage)

// WithRedisKey overrides the key the snapshot is stored under
func WithRedisKey(key string) RedisOption {
	return func(r *RedisStorage) {
		if key != "" {
			r.key = key
		}
	}
}

// WithRetryPolicy wraps every Redis call in the given retry policy
func WithRetryPolicy(p *retry.Policy) RedisOption {
	return func(r *RedisStorage) {
		r.policy = p
	}
}

// NewRedisStorage creates a Redis-backed storage
func NewRedisStorage(client redis.Cmdable, opts ...RedisOption) *RedisStorage {
	r := &RedisStorage{
		client: client,
		key:    DefaultRedisKey,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve implements Storage
func (r *RedisStorage) Retrieve(ctx context.Context) (Snapshot, error) {
	data, err := retry.Value(ctx, r.policy, "state.get", func() ([]byte, error) {
		data, err := r.client.Get(ctx, r.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", r.key, err)
	}
	if len(data) == 0 {
		return Snapshot{}, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot under key %s: %w", r.key, err)
	}
	return snapshot, nil
}

// Save implements Storage
func (r *RedisStorage) Save(ctx context.Context, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	err = r.policy.Do(ctx, "state.set", func() error {
		return r.client.Set(ctx, r.key, data, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", r.key, err)
	}
	return nil
}
