// Package collect accumulates affected film work identifiers in a Redis set
// and drains them in pages.
//
// Adding is idempotent: an identifier queued several times within a cycle is
// rebuilt once. The set is deleted only after every page has been handed to
// the consumer without error, so a failed or interrupted drain leaves the
// identifiers in place for the next cycle.
package collect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stacklok/pgsearch-sync/internal/retry"
)

const (
	// DefaultKey is the Redis key of the pending set
	DefaultKey = "movie_ids"

	// DefaultPageSize is the SSCAN COUNT hint
	DefaultPageSize = 100
)

// Page is an ordered slice of pending identifiers with no duplicates
type Page []uuid.UUID

// Collector stores pending identifiers in a Redis set
type Collector struct {
	client   redis.Cmdable
	policy   *retry.Policy
	pageSize int64
}

// Option configures a Collector
type Option func(*Collector)

// WithRetryPolicy wraps every Redis call in policy
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(c *Collector) {
		c.policy = policy
	}
}

// WithPageSize sets the SSCAN COUNT hint
func WithPageSize(size int) Option {
	return func(c *Collector) {
		if size > 0 {
			c.pageSize = int64(size)
		}
	}
}

// New creates a Collector backed by client
func New(client redis.Cmdable, opts ...Option) *Collector {
	c := &Collector{
		client:   client,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add queues ids under key
func (c *Collector) Add(ctx context.Context, key string, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id.String()
	}

	err := c.policy.Do(ctx, "redis.sadd", func() error {
		return c.client.SAdd(ctx, key, members...).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to add %d ids to %s: %w", len(ids), key, err)
	}
	return nil
}

type scanResult struct {
	members []string
	cursor  uint64
}

// Drain walks the set under key and calls fn with each non-empty page.
// Members repeated by SSCAN are passed to fn only once. When every call
// to fn succeeded the set is deleted; otherwise the first error is returned
// and the set is left untouched.
func (c *Collector) Drain(ctx context.Context, key string, fn func(ctx context.Context, page Page) error) error {
	seen := make(map[uuid.UUID]struct{})
	var cursor uint64
	pages := 0

	for {
		res, err := retry.Value(ctx, c.policy, "redis.sscan", func() (scanResult, error) {
			members, next, err := c.client.SScan(ctx, key, cursor, "", c.pageSize).Result()
			return scanResult{members: members, cursor: next}, err
		})
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", key, err)
		}

		page := make(Page, 0, len(res.members))
		for _, member := range res.members {
			id, err := uuid.Parse(member)
			if err != nil {
				slog.Warn("Discarding malformed pending id", "key", key, "member", member)
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			page = append(page, id)
		}

		if len(page) > 0 {
			pages++
			if err := fn(ctx, page); err != nil {
				return fmt.Errorf("failed to process page %d of %s: %w", pages, key, err)
			}
		}

		cursor = res.cursor
		if cursor == 0 {
			break
		}
	}

	err := c.policy.Do(ctx, "redis.del", func() error {
		return c.client.Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s after drain: %w", key, err)
	}

	slog.Debug("Drained pending ids", "key", key, "ids", len(seen), "pages", pages)
	return nil
}

// Len returns the number of pending identifiers under key
func (c *Collector) Len(ctx context.Context, key string) (int64, error) {
	n, err := retry.Value(ctx, c.policy, "redis.scard", func() (int64, error) {
		return c.client.SCard(ctx, key).Result()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", key, err)
	}
	return n, nil
}

// Ping checks Redis is reachable
func (c *Collector) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
