package collect

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/stacklok/pgsearch-sync/internal/config"
)

// NewClient builds a Redis client from the redis config section.
// Client-side retries are disabled; the collector's retry policy owns them.
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	password, err := cfg.GetPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to read redis password: %w", err)
	}

	return redis.NewClient(&redis.Options{
		Addr:       cfg.Address,
		DB:         cfg.DB,
		Username:   cfg.Username,
		Password:   password,
		MaxRetries: -1,
	}), nil
}
