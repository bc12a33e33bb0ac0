package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/pgsearch-sync/internal/api"
	"github.com/stacklok/pgsearch-sync/internal/app/storage"
	"github.com/stacklok/pgsearch-sync/internal/collect"
	"github.com/stacklok/pgsearch-sync/internal/config"
	"github.com/stacklok/pgsearch-sync/internal/extract"
	"github.com/stacklok/pgsearch-sync/internal/load"
	"github.com/stacklok/pgsearch-sync/internal/otel"
	"github.com/stacklok/pgsearch-sync/internal/retry"
	"github.com/stacklok/pgsearch-sync/internal/state"
	"github.com/stacklok/pgsearch-sync/internal/status"
	pkgsync "github.com/stacklok/pgsearch-sync/internal/sync"
	"github.com/stacklok/pgsearch-sync/internal/sync/coordinator"
	"github.com/stacklok/pgsearch-sync/internal/telemetry"
)

const (
	defaultHTTPAddress     = ":8080"
	defaultRequestTimeout  = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects the builder inputs.
// It supports dependency injection for testing while providing sensible defaults for production.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	syncManager    pkgsync.Manager
	pendingCounter coordinator.PendingCounter

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler

	// populated while building
	tracker *status.Tracker
	metrics *telemetry.SyncMetrics
	checks  []api.Check
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewSyncApp wires the synchronizer from its configuration
func NewSyncApp(
	ctx context.Context,
	opts ...SyncAppOptions,
) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// The factory is only needed when the sync manager is not injected
	if cfg.storageFactory == nil && cfg.syncManager == nil {
		cfg.storageFactory, err = storage.NewFactory(ctx, cfg.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded && cfg.storageFactory != nil {
			cfg.storageFactory.Cleanup()
		}
	}()

	syncCoordinator, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	httpServer, err := buildHTTPServer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	factory := cfg.storageFactory
	cancelFunc := func() {
		if factory != nil {
			factory.Cleanup()
		}
		cancel()
	}

	return &SyncApp{
		config: cfg.config,
		components: &AppComponents{
			SyncCoordinator: syncCoordinator,
			Tracker:         cfg.tracker,
			StorageFactory:  factory,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancelFunc,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithSyncManager allows injecting a custom sync manager (for testing)
func WithSyncManager(sm pkgsync.Manager) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithPendingCounter overrides how the pending set size is read for the status endpoint
func WithPendingCounter(counter coordinator.PendingCounter) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.pendingCounter = counter
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync metrics
func WithMeterProvider(mp metric.MeterProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for cycle spans
func WithTracerProvider(tp trace.TracerProvider) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves handler on /metrics
func WithMetricsHandler(h http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// newRetryPolicy builds a policy from the sync.retry section that reports every retry as a metric
func newRetryPolicy(b *syncAppConfig, transient retry.Predicate) *retry.Policy {
	r := b.config.GetSync().Retry
	metrics := b.metrics
	return retry.New(transient,
		retry.WithInitialDelay(r.GetInitialDelay()),
		retry.WithMultiplier(r.Multiplier),
		retry.WithMaxDelay(r.GetMaxDelay()),
		retry.WithMaxRetries(r.MaxRetries),
		retry.WithOnRetry(func(operation string, _ error, _ time.Duration) {
			metrics.RecordRetry(context.Background(), operation)
		}),
	)
}

// buildSyncComponents builds the sync pipeline, the coordinator and the status tracker
func buildSyncComponents(
	ctx context.Context,
	b *syncAppConfig,
) (coordinator.Coordinator, error) {
	slog.Info("Initializing sync components")

	if b.meterProvider != nil {
		metrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		b.metrics = metrics
		slog.Info("Sync metrics enabled")
	}

	b.tracker = status.NewTracker()
	syncCfg := b.config.GetSync()

	if b.syncManager == nil {
		manager, err := buildSyncManager(ctx, b)
		if err != nil {
			return nil, err
		}
		b.syncManager = manager
	}

	coordOpts := []coordinator.Option{
		coordinator.WithInterval(syncCfg.GetInterval()),
		coordinator.WithTracker(b.tracker),
	}
	if b.pendingCounter != nil {
		coordOpts = append(coordOpts, coordinator.WithPendingCounter(b.pendingCounter))
	}

	syncCoordinator := coordinator.New(b.syncManager, coordOpts...)
	slog.Info("Sync components initialized successfully", "interval", syncCfg.GetInterval())

	return syncCoordinator, nil
}

// buildSyncManager wires extractor, collector, loader and watermark from the storage factory
func buildSyncManager(ctx context.Context, b *syncAppConfig) (pkgsync.Manager, error) {
	syncCfg := b.config.GetSync()
	redisCfg := b.config.GetRedis()
	esCfg := b.config.GetElasticsearch()

	stateStorage, err := b.storageFactory.CreateStateStorage(newRetryPolicy(b, b.stateTransient()))
	if err != nil {
		return nil, fmt.Errorf("failed to create state storage: %w", err)
	}
	watermark, err := state.Load(ctx, stateStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	lastUpdated, err := watermark.LastUpdated()
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark: %w", err)
	}
	b.tracker.SetWatermark(lastUpdated)
	slog.Info("Loaded sync state", "watermark", lastUpdated)

	extractor := b.storageFactory.CreateExtractor(
		extract.WithBatchSize(syncCfg.BatchSize),
		extract.WithRetryPolicy(newRetryPolicy(b, extract.IsTransient)),
	)
	collector := b.storageFactory.CreateCollector(
		collect.WithPageSize(syncCfg.BatchSize),
		collect.WithRetryPolicy(newRetryPolicy(b, collect.IsTransient)),
	)
	loader := b.storageFactory.CreateLoader(
		load.WithRetryPolicy(newRetryPolicy(b, load.IsTransient)),
	)

	if version, err := loader.CheckServerVersion(ctx); err != nil {
		if errors.Is(err, load.ErrUnsupportedServer) {
			return nil, err
		}
		slog.Warn("Could not verify Elasticsearch version", "error", err)
	} else {
		slog.Info("Connected to Elasticsearch", "version", version)
	}

	if b.pendingCounter == nil {
		b.pendingCounter = func(ctx context.Context) (int64, error) {
			return collector.Len(ctx, redisCfg.PendingKey)
		}
	}
	b.checks = b.storageFactory.ReadinessChecks()

	syncOpts := []pkgsync.Option{
		pkgsync.WithPendingKey(redisCfg.PendingKey),
		pkgsync.WithIndices(pkgsync.Indices{
			Movies:  esCfg.Indices.Movies,
			Persons: esCfg.Indices.Persons,
			Genres:  esCfg.Indices.Genres,
		}),
		pkgsync.WithMetrics(b.metrics),
	}
	if b.tracerProvider != nil {
		syncOpts = append(syncOpts, pkgsync.WithTracer(b.tracerProvider.Tracer(otel.TracerName)))
	}

	return pkgsync.NewSyncer(extractor, collector, loader, watermark, syncOpts...), nil
}

// stateTransient picks the transient predicate matching the state backend
func (b *syncAppConfig) stateTransient() retry.Predicate {
	if b.config.GetState().Type == config.StateTypeRedis {
		return collect.IsTransient
	}
	return nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *syncAppConfig,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	// Use default middlewares if not provided
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	router := api.NewServer(
		api.WithMiddlewares(b.middlewares...),
		api.WithChecks(b.checks...),
		api.WithStatus(b.tracker),
		api.WithMetricsHandler(b.metricsHandler),
	)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
