package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/onsi/gomega"

	"github.com/stacklok/pgsearch-sync/database"
	"github.com/stacklok/pgsearch-sync/internal/api"
	syncapp "github.com/stacklok/pgsearch-sync/internal/app"
	"github.com/stacklok/pgsearch-sync/internal/config"
	"github.com/stacklok/pgsearch-sync/internal/status"
)

// NewConfig points the synchronizer at the test database, Redis and Elasticsearch.
// The database password is written to a file under dir.
func NewConfig(db *database.TestDB, redisAddr, esURL, dir string) *config.Config {
	connConfig, err := pgx.ParseConfig(db.ConnString)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	passwordFile := filepath.Join(dir, "db-password")
	gomega.Expect(os.WriteFile(passwordFile, []byte(connConfig.Password), 0o600)).To(gomega.Succeed())

	return &config.Config{
		Database: &config.DatabaseConfig{
			Host:         connConfig.Host,
			Port:         int(connConfig.Port),
			User:         connConfig.User,
			PasswordFile: passwordFile,
			Database:     connConfig.Database,
			SSLMode:      "disable",
		},
		Redis:         &config.RedisConfig{Address: redisAddr},
		Elasticsearch: &config.ElasticsearchConfig{Addresses: []string{esURL}},
		Sync: &config.SyncConfig{
			Interval:  "200ms",
			BatchSize: 2,
			Retry: &config.RetryConfig{
				InitialDelay: "10ms",
				MaxDelay:     "50ms",
				MaxRetries:   2,
			},
		},
	}
}

// SyncTestHelper manages a synchronizer built from a config
type SyncTestHelper struct {
	ctx        context.Context
	app        *syncapp.SyncApp
	baseURL    string
	httpClient *http.Client
}

// NewSyncTestHelper builds the application on a free local port
func NewSyncTestHelper(ctx context.Context, cfg *config.Config) (*SyncTestHelper, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	address := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	app, err := syncapp.NewSyncApp(ctx,
		syncapp.WithConfig(cfg),
		syncapp.WithAddress(address),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build app: %w", err)
	}

	return &SyncTestHelper{
		ctx:        ctx,
		app:        app,
		baseURL:    "http://" + address,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// RunOnce runs a single cycle
func (s *SyncTestHelper) RunOnce() error {
	return s.app.RunOnce(s.ctx)
}

// Start runs the sync loop and the HTTP server in the background
func (s *SyncTestHelper) Start() {
	go func() {
		if err := s.app.Start(); err != nil {
			// The test fails when it can no longer reach the server
			fmt.Fprintf(os.Stderr, "Sync app failed: %v\n", err)
		}
	}()
}

// Stop gracefully stops the application
func (s *SyncTestHelper) Stop() error {
	return s.app.Stop(5 * time.Second)
}

// Tracker returns the in-process status tracker
func (s *SyncTestHelper) Tracker() *status.Tracker {
	return s.app.GetComponents().Tracker
}

// WaitForServerReady waits until /health answers
func (s *SyncTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() int {
		resp, err := s.httpClient.Get(s.baseURL + "/health")
		if err != nil {
			return 0
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}, timeout, 50*time.Millisecond).Should(gomega.Equal(http.StatusOK))
}

// GetStatus fetches /status
func (s *SyncTestHelper) GetStatus() (status.SyncStatus, error) {
	var st status.SyncStatus
	_, err := s.getJSON("/status", &st)
	return st, err
}

// GetReadiness fetches /readiness and returns the status code with the body
func (s *SyncTestHelper) GetReadiness() (int, api.ReadinessResponse, error) {
	var resp api.ReadinessResponse
	code, err := s.getJSON("/readiness", &resp)
	return code, resp, err
}

func (s *SyncTestHelper) getJSON(path string, out any) (int, error) {
	resp, err := s.httpClient.Get(s.baseURL + path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
