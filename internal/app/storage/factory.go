// Package storage creates the backend-dependent components of the synchronizer
// from a single place: the PostgreSQL pool, the Redis client and the
// Elasticsearch client are opened once and shared by every component built on
// them.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stacklok/pgsearch-sync/internal/api"
	"github.com/stacklok/pgsearch-sync/internal/collect"
	"github.com/stacklok/pgsearch-sync/internal/config"
	"github.com/stacklok/pgsearch-sync/internal/db"
	"github.com/stacklok/pgsearch-sync/internal/extract"
	"github.com/stacklok/pgsearch-sync/internal/load"
	"github.com/stacklok/pgsearch-sync/internal/retry"
	"github.com/stacklok/pgsearch-sync/internal/state"
)

// Factory creates backend-dependent components as a family.
//
// It also manages the lifecycle of the backend clients. Cleanup should be
// called when the application shuts down.
type Factory interface {
	// CreateStateStorage creates the storage of the watermark snapshot
	CreateStateStorage(policy *retry.Policy) (state.Storage, error)

	// CreateExtractor creates the PostgreSQL change reader
	CreateExtractor(opts ...extract.Option) *extract.Extractor

	// CreateCollector creates the Redis pending set
	CreateCollector(opts ...collect.Option) *collect.Collector

	// CreateLoader creates the Elasticsearch bulk writer
	CreateLoader(opts ...load.Option) *load.ElasticsearchLoader

	// ReadinessChecks probes every backend
	ReadinessChecks() []api.Check

	// Cleanup releases the backend clients
	Cleanup()
}

// BackendFactory is the Factory used in production
type BackendFactory struct {
	config *config.Config
	pool   *pgxpool.Pool
	redis  *redis.Client
	es     *elasticsearch.Client
}

var _ Factory = (*BackendFactory)(nil)

// NewFactory opens the backend clients described by cfg. No connection is
// made yet; the first cycle or readiness probe surfaces unreachable backends.
func NewFactory(ctx context.Context, cfg *config.Config) (*BackendFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	slog.Info("Creating backend clients")

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient, err := collect.NewClient(cfg.GetRedis())
	if err != nil {
		pool.Close()
		return nil, err
	}

	esClient, err := load.NewClient(cfg.GetElasticsearch())
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	return &BackendFactory{
		config: cfg,
		pool:   pool,
		redis:  redisClient,
		es:     esClient,
	}, nil
}

// CreateStateStorage returns a Redis or file storage depending on state.type
func (f *BackendFactory) CreateStateStorage(policy *retry.Policy) (state.Storage, error) {
	stateCfg := f.config.GetState()
	switch stateCfg.Type {
	case config.StateTypeRedis:
		slog.Debug("Using Redis state storage", "key", f.config.GetRedis().StateKey)
		return state.NewRedisStorage(f.redis,
			state.WithRedisKey(f.config.GetRedis().StateKey),
			state.WithRetryPolicy(policy)), nil
	case config.StateTypeFile:
		slog.Debug("Using file state storage", "path", stateCfg.Path)
		return state.NewFileStorage(stateCfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown state type: %s", stateCfg.Type)
	}
}

// CreateExtractor implements Factory
func (f *BackendFactory) CreateExtractor(opts ...extract.Option) *extract.Extractor {
	return extract.New(f.pool, opts...)
}

// CreateCollector implements Factory
func (f *BackendFactory) CreateCollector(opts ...collect.Option) *collect.Collector {
	return collect.New(f.redis, opts...)
}

// CreateLoader implements Factory
func (f *BackendFactory) CreateLoader(opts ...load.Option) *load.ElasticsearchLoader {
	return load.NewElasticsearchLoader(f.es, opts...)
}

// ReadinessChecks implements Factory
func (f *BackendFactory) ReadinessChecks() []api.Check {
	return []api.Check{
		{Name: "postgres", Pinger: f.pool},
		{Name: "redis", Pinger: api.PingFunc(func(ctx context.Context) error { return f.redis.Ping(ctx).Err() })},
		{Name: "elasticsearch", Pinger: f.CreateLoader()},
	}
}

// Cleanup implements Factory
func (f *BackendFactory) Cleanup() {
	slog.Debug("Closing backend clients")
	f.pool.Close()
	if err := f.redis.Close(); err != nil {
		slog.Warn("Failed to close Redis client", "error", err)
	}
}
