package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/pgsearch-sync/internal/config"
	"github.com/stacklok/pgsearch-sync/internal/extract"
	"github.com/stacklok/pgsearch-sync/internal/status"
	pkgsync "github.com/stacklok/pgsearch-sync/internal/sync"
	"github.com/stacklok/pgsearch-sync/internal/sync/mocks"
)

func TestBaseConfig(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createTestAppConfig()))
	require.NoError(t, err)
	require.NotNil(t, built)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	assert.Equal(t, defaultReadTimeout, built.readTimeout)
	assert.Equal(t, defaultWriteTimeout, built.writeTimeout)
	assert.Equal(t, defaultIdleTimeout, built.idleTimeout)
}

func TestBaseConfig_OptionError(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(
		WithConfig(createTestAppConfig()),
		WithAddress(""),
	)
	require.Error(t, err)
	assert.Nil(t, built)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "valid address", address: ":9999", want: ":9999"},
		{name: "valid address with host", address: "127.0.0.1:9999", want: "127.0.0.1:9999"},
		{name: "valid address with localhost", address: "localhost:9999", want: "localhost:9999"},
		{name: "invalid empty address", address: "", wantErr: true},
		{name: "invalid empty port", address: ":", wantErr: true},
		{name: "invalid missing port", address: "localhost", wantErr: true},
		{name: "invalid port out of range", address: "localhost:999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &syncAppConfig{}
			err := WithAddress(tt.address)(cfg)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.address)
		})
	}
}

func TestWithOptions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := mocks.NewMockManager(ctrl)
	counter := func(context.Context) (int64, error) { return 3, nil }
	mw := func(next http.Handler) http.Handler { return next }
	handler := http.NotFoundHandler()
	mp := metric.NewMeterProvider()

	built, err := baseConfig(
		WithSyncManager(manager),
		WithPendingCounter(counter),
		WithMiddlewares(mw),
		WithMetricsHandler(handler),
		WithMeterProvider(mp),
	)
	require.NoError(t, err)
	assert.Equal(t, manager, built.syncManager)
	assert.NotNil(t, built.pendingCounter)
	assert.Len(t, built.middlewares, 1)
	assert.NotNil(t, built.metricsHandler)
	assert.Equal(t, mp, built.meterProvider)
}

func TestBuildHTTPServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		config     *syncAppConfig
		wantAddr   string
		wantStatus map[string]int
	}{
		{
			name: "with default middlewares and status",
			config: &syncAppConfig{
				address:        ":8080",
				requestTimeout: 10 * time.Second,
				readTimeout:    10 * time.Second,
				writeTimeout:   15 * time.Second,
				idleTimeout:    60 * time.Second,
				tracker:        status.NewTracker(),
			},
			wantAddr: ":8080",
			wantStatus: map[string]int{
				"/health":  http.StatusOK,
				"/status":  http.StatusOK,
				"/metrics": http.StatusNotFound,
			},
		},
		{
			name: "with metrics handler",
			config: &syncAppConfig{
				address: ":9090",
				middlewares: []func(http.Handler) http.Handler{
					func(next http.Handler) http.Handler { return next },
				},
				requestTimeout: 5 * time.Second,
				readTimeout:    5 * time.Second,
				writeTimeout:   10 * time.Second,
				idleTimeout:    30 * time.Second,
				tracker:        status.NewTracker(),
				metricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					_, _ = io.WriteString(w, "# metrics\n")
				}),
			},
			wantAddr: ":9090",
			wantStatus: map[string]int{
				"/health":  http.StatusOK,
				"/metrics": http.StatusOK,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, err := buildHTTPServer(ctx, tt.config)
			require.NoError(t, err)
			require.NotNil(t, server)
			assert.Equal(t, tt.wantAddr, server.Addr)
			assert.Equal(t, tt.config.readTimeout, server.ReadTimeout)
			assert.Equal(t, tt.config.writeTimeout, server.WriteTimeout)
			assert.Equal(t, tt.config.idleTimeout, server.IdleTimeout)
			assert.NotEmpty(t, tt.config.middlewares)

			for path, code := range tt.wantStatus {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				rec := httptest.NewRecorder()
				server.Handler.ServeHTTP(rec, req)
				assert.Equal(t, code, rec.Code, path)
			}
		})
	}
}

func TestNewSyncApp_NilConfig(t *testing.T) {
	t.Parallel()

	app, err := NewSyncApp(context.Background())
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewSyncApp_InvalidOption(t *testing.T) {
	t.Parallel()

	app, err := NewSyncApp(context.Background(),
		WithConfig(createTestAppConfig()),
		WithAddress("nope"),
	)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "failed to build base configuration")
}

func TestNewSyncApp_WithSyncManager(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := mocks.NewMockManager(ctrl)
	manager.EXPECT().RunCycle(gomock.Any()).Return(&pkgsync.Result{
		Since:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Watermark:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		MoviesLoaded: 4,
	}, nil)

	app, err := NewSyncApp(context.Background(),
		WithConfig(createTestAppConfig()),
		WithAddress("127.0.0.1:0"),
		WithSyncManager(manager),
		WithPendingCounter(func(context.Context) (int64, error) { return 0, nil }),
		WithMeterProvider(metric.NewMeterProvider()),
	)
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Nil(t, app.GetComponents().StorageFactory)

	require.NoError(t, app.RunOnce(context.Background()))

	st := app.GetComponents().Tracker.Get()
	assert.Equal(t, status.SyncPhaseComplete, st.Phase)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, 4, st.LastResult.MoviesLoaded)

	require.NoError(t, app.Stop(time.Second))
}

func TestNewSyncApp_NoUpdates(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := mocks.NewMockManager(ctrl)
	manager.EXPECT().RunCycle(gomock.Any()).Return(nil, extract.ErrNoUpdatesFound)

	app, err := NewSyncApp(context.Background(),
		WithConfig(createTestAppConfig()),
		WithSyncManager(manager),
		WithPendingCounter(func(context.Context) (int64, error) { return 0, nil }),
	)
	require.NoError(t, err)

	require.NoError(t, app.RunOnce(context.Background()))
	assert.Equal(t, status.SyncPhaseComplete, app.GetComponents().Tracker.Get().Phase)
}

// newBackendConfig points the app at miniredis, a fake Elasticsearch and an unreachable Postgres
func newBackendConfig(t *testing.T, esVersion string) *config.Config {
	t.Helper()

	passwordFile := filepath.Join(t.TempDir(), "db-password")
	require.NoError(t, os.WriteFile(passwordFile, []byte("secret"), 0o600))

	mr := miniredis.RunT(t)

	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"version":{"number":"`+esVersion+`"}}`)
	}))
	t.Cleanup(es.Close)

	return &config.Config{
		Database: &config.DatabaseConfig{
			Host:         "127.0.0.1",
			Port:         1,
			User:         "sync",
			Database:     "movies",
			SSLMode:      "disable",
			PasswordFile: passwordFile,
		},
		Redis:         &config.RedisConfig{Address: mr.Addr()},
		Elasticsearch: &config.ElasticsearchConfig{Addresses: []string{es.URL}},
		Sync: &config.SyncConfig{
			Retry: &config.RetryConfig{
				InitialDelay: "1ms",
				MaxDelay:     "5ms",
				MaxRetries:   1,
			},
		},
	}
}

func TestNewSyncApp_WithBackends(t *testing.T) {
	t.Parallel()

	app, err := NewSyncApp(context.Background(),
		WithConfig(newBackendConfig(t, "8.19.0")),
		WithAddress("127.0.0.1:0"),
		WithMeterProvider(metric.NewMeterProvider()),
	)
	require.NoError(t, err)
	require.NotNil(t, app)
	require.NotNil(t, app.GetComponents().StorageFactory)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	// Postgres is unreachable, so the cycle fails once retries are exhausted
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = app.RunOnce(ctx)
	require.Error(t, err)

	var syncErr *pkgsync.Error
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, pkgsync.StageDetect, syncErr.Stage)
	assert.Equal(t, status.SyncPhaseFailed, app.GetComponents().Tracker.Get().Phase)
}

func TestNewSyncApp_UnsupportedElasticsearch(t *testing.T) {
	t.Parallel()

	app, err := NewSyncApp(context.Background(),
		WithConfig(newBackendConfig(t, "7.17.0")),
	)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "failed to build sync components")
}
