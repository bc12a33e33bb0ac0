// Package config provides configuration loading and management for the synchronizer.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/pgsearch-sync/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the synchronizer
const EnvPrefix = "PGSEARCH_SYNC"

const (
	// StateTypeRedis stores the watermark snapshot in the coordination store
	StateTypeRedis = "redis"

	// StateTypeFile stores the watermark snapshot in a local JSON file
	StateTypeFile = "file"
)

const (
	defaultSchema          = "content"
	defaultSSLMode         = "require"
	defaultRedisAddress    = "localhost:6379"
	defaultStateKey        = "data"
	defaultPendingKey      = "movie_ids"
	defaultESAddress       = "http://localhost:9200"
	defaultMoviesIndex     = "movies"
	defaultPersonsIndex    = "persons"
	defaultGenresIndex     = "genres"
	defaultInterval        = time.Minute
	defaultBatchSize       = 100
	defaultInitialDelay    = 100 * time.Millisecond
	defaultRetryMultiplier = 2.0
	defaultMaxDelay        = 10 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Database      *DatabaseConfig      `yaml:"database"`
	Redis         *RedisConfig         `yaml:"redis,omitempty"`
	Elasticsearch *ElasticsearchConfig `yaml:"elasticsearch,omitempty"`
	State         *StateConfig         `yaml:"state,omitempty"`
	Sync          *SyncConfig          `yaml:"sync,omitempty"`
	Telemetry     *telemetry.Config    `yaml:"telemetry,omitempty"`
}

// DatabaseConfig defines the source database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// Schema holds the content tables. Defaults to "content".
	Schema string `yaml:"schema,omitempty"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// RedisConfig defines the coordination store settings
type RedisConfig struct {
	// Address is host:port of the Redis server
	Address string `yaml:"address"`

	// DB is the logical database number
	DB int `yaml:"db,omitempty"`

	// Username for Redis ACL authentication
	Username string `yaml:"username,omitempty"`

	// PasswordFile is the path to a file containing the Redis password.
	// Falls back to PGSEARCH_SYNC_REDIS_PASSWORD; an empty password is allowed.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// StateKey is the key holding the JSON state snapshot
	StateKey string `yaml:"stateKey,omitempty"`

	// PendingKey is the key of the set of film work IDs awaiting rebuild
	PendingKey string `yaml:"pendingKey,omitempty"`
}

// ElasticsearchConfig defines the destination index settings
type ElasticsearchConfig struct {
	// Addresses lists the cluster nodes
	Addresses []string `yaml:"addresses"`

	// Username for basic authentication
	Username string `yaml:"username,omitempty"`

	// PasswordFile is the path to a file containing the Elasticsearch password.
	// Falls back to PGSEARCH_SYNC_ELASTICSEARCH_PASSWORD; an empty password is allowed.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Indices maps the three document categories to index names
	Indices *IndicesConfig `yaml:"indices,omitempty"`
}

// IndicesConfig names the destination indices
type IndicesConfig struct {
	Movies  string `yaml:"movies,omitempty"`
	Persons string `yaml:"persons,omitempty"`
	Genres  string `yaml:"genres,omitempty"`
}

// StateConfig selects where the watermark snapshot is persisted
type StateConfig struct {
	// Type is "redis" (default) or "file"
	Type string `yaml:"type,omitempty"`

	// Path is the state file location when Type is "file"
	Path string `yaml:"path,omitempty"`
}

// SyncConfig defines the synchronization loop settings
type SyncConfig struct {
	// Interval is the idle time between two cycles (e.g., "1m")
	Interval string `yaml:"interval,omitempty"`

	// BatchSize is the page size used when reading changes and draining pending IDs
	BatchSize int `yaml:"batchSize,omitempty"`

	// Retry controls the backoff applied to external calls
	Retry *RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig defines the exponential backoff settings
type RetryConfig struct {
	InitialDelay string  `yaml:"initialDelay,omitempty"`
	Multiplier   float64 `yaml:"multiplier,omitempty"`
	MaxDelay     string  `yaml:"maxDelay,omitempty"`

	// MaxRetries bounds the number of retries per call. 0 retries forever.
	MaxRetries uint `yaml:"maxRetries,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Database == nil {
		errs = append(errs, fmt.Errorf("database configuration is required"))
	} else if err := c.Database.validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.GetState().validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.GetSync().validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("database.connMaxLifetime must be a valid duration: %w", err)
		}
	}
	return nil
}

func (s *StateConfig) validate() error {
	switch s.Type {
	case StateTypeRedis:
		return nil
	case StateTypeFile:
		if s.Path == "" {
			return fmt.Errorf("state.path is required when state.type is %s", StateTypeFile)
		}
		return nil
	default:
		return fmt.Errorf("state.type must be %s or %s, got %q", StateTypeRedis, StateTypeFile, s.Type)
	}
}

func (s *SyncConfig) validate() error {
	if _, err := time.ParseDuration(s.Interval); err != nil {
		return fmt.Errorf("sync.interval must be a valid duration (e.g., '30s', '1m'): %w", err)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("sync.batchSize must be positive, got %d", s.BatchSize)
	}
	r := s.Retry
	if _, err := time.ParseDuration(r.InitialDelay); err != nil {
		return fmt.Errorf("sync.retry.initialDelay must be a valid duration: %w", err)
	}
	if _, err := time.ParseDuration(r.MaxDelay); err != nil {
		return fmt.Errorf("sync.retry.maxDelay must be a valid duration: %w", err)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("sync.retry.multiplier must be >= 1, got %v", r.Multiplier)
	}
	return nil
}

// GetSchema returns the content schema, using "content" if not specified
func (d *DatabaseConfig) GetSchema() string {
	if d.Schema == "" {
		return defaultSchema
	}
	return d.Schema
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from PGSEARCH_SYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	password, found, err := readSecret(d.PasswordFile, EnvPrefix+"_DATABASE_PASSWORD")
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf(
			"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable",
			EnvPrefix,
		)
	}
	return password, nil
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetRedis returns the Redis configuration with defaults applied
func (c *Config) GetRedis() *RedisConfig {
	r := RedisConfig{}
	if c.Redis != nil {
		r = *c.Redis
	}
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
	if r.StateKey == "" {
		r.StateKey = defaultStateKey
	}
	if r.PendingKey == "" {
		r.PendingKey = defaultPendingKey
	}
	return &r
}

// GetPassword returns the Redis password from PasswordFile or the environment.
// An empty string means no authentication.
func (r *RedisConfig) GetPassword() (string, error) {
	password, _, err := readSecret(r.PasswordFile, EnvPrefix+"_REDIS_PASSWORD")
	return password, err
}

// GetElasticsearch returns the Elasticsearch configuration with defaults applied
func (c *Config) GetElasticsearch() *ElasticsearchConfig {
	e := ElasticsearchConfig{}
	if c.Elasticsearch != nil {
		e = *c.Elasticsearch
	}
	if len(e.Addresses) == 0 {
		e.Addresses = []string{defaultESAddress}
	}
	indices := IndicesConfig{}
	if e.Indices != nil {
		indices = *e.Indices
	}
	if indices.Movies == "" {
		indices.Movies = defaultMoviesIndex
	}
	if indices.Persons == "" {
		indices.Persons = defaultPersonsIndex
	}
	if indices.Genres == "" {
		indices.Genres = defaultGenresIndex
	}
	e.Indices = &indices
	return &e
}

// GetPassword returns the Elasticsearch password from PasswordFile or the environment.
// An empty string means no authentication.
func (e *ElasticsearchConfig) GetPassword() (string, error) {
	password, _, err := readSecret(e.PasswordFile, EnvPrefix+"_ELASTICSEARCH_PASSWORD")
	return password, err
}

// GetState returns the state storage configuration with defaults applied
func (c *Config) GetState() *StateConfig {
	s := StateConfig{}
	if c.State != nil {
		s = *c.State
	}
	if s.Type == "" {
		s.Type = StateTypeRedis
	}
	return &s
}

// GetSync returns the sync configuration with defaults applied
func (c *Config) GetSync() *SyncConfig {
	s := SyncConfig{}
	if c.Sync != nil {
		s = *c.Sync
	}
	if s.Interval == "" {
		s.Interval = defaultInterval.String()
	}
	if s.BatchSize == 0 {
		s.BatchSize = defaultBatchSize
	}
	r := RetryConfig{}
	if s.Retry != nil {
		r = *s.Retry
	}
	if r.InitialDelay == "" {
		r.InitialDelay = defaultInitialDelay.String()
	}
	if r.MaxDelay == "" {
		r.MaxDelay = defaultMaxDelay.String()
	}
	if r.Multiplier == 0 {
		r.Multiplier = defaultRetryMultiplier
	}
	s.Retry = &r
	return &s
}

// GetInterval returns the parsed idle interval, falling back to the default on parse errors.
// Validate rejects unparsable values, so the fallback only applies to unvalidated configs.
func (s *SyncConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil || d <= 0 {
		return defaultInterval
	}
	return d
}

// GetInitialDelay returns the parsed initial retry delay
func (r *RetryConfig) GetInitialDelay() time.Duration {
	return parseDurationOr(r.InitialDelay, defaultInitialDelay)
}

// GetMaxDelay returns the parsed retry delay ceiling
func (r *RetryConfig) GetMaxDelay() time.Duration {
	return parseDurationOr(r.MaxDelay, defaultMaxDelay)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// readSecret reads a secret from a file if one is configured, otherwise from envVar
func readSecret(file, envVar string) (string, bool, error) {
	if file != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(file)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", false, fmt.Errorf("failed to read password from file %s: %w", file, err)
		}

		// Trim whitespace (including newlines) from file content
		return strings.TrimSpace(string(data)), true, nil
	}

	if value := os.Getenv(envVar); value != "" {
		return value, true, nil
	}

	return "", false, nil
}
