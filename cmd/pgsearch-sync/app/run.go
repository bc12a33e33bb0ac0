package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	syncapp "github.com/stacklok/pgsearch-sync/internal/app"
	"github.com/stacklok/pgsearch-sync/internal/config"
	"github.com/stacklok/pgsearch-sync/internal/telemetry"
	"github.com/stacklok/pgsearch-sync/internal/versions"
)

const (
	defaultGracefulTimeout  = 30 * time.Second
	telemetryShutdownBudget = 5 * time.Second
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the synchronizer",
		Long: `Run the sync loop until interrupted. Every interval the changed rows of the
content schema are detected, the affected film works are queued in Redis and
their movie documents are rebuilt and loaded into Elasticsearch.

The operational HTTP server exposes /health, /readiness, /status, /version and,
when Prometheus metrics are enabled, /metrics.

With --once a single cycle runs and the command exits without serving HTTP.
See examples/ directory for sample configurations.`,
		RunE: runSync,
	}

	cmd.Flags().String("address", ":8080", "Address of the operational HTTP server")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	cmd.Flags().Bool("once", false, "Run a single sync cycle and exit")
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	// Flags can also be set as PGSEARCH_SYNC_<FLAG> environment variables
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	configPath := v.GetString("config")
	address := v.GetString("address")
	once := v.GetBool("once")

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration", "path", configPath, "state", cfg.GetState().Type)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithServiceVersion(versions.Version),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownBudget)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	syncApp, err := syncapp.NewSyncApp(ctx,
		syncapp.WithConfig(cfg),
		syncapp.WithAddress(address),
		syncapp.WithMeterProvider(tel.MeterProvider()),
		syncapp.WithTracerProvider(tel.TracerProvider()),
		syncapp.WithMetricsHandler(tel.MetricsHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to create sync application: %w", err)
	}

	if once {
		runErr := syncApp.RunOnce(ctx)
		if err := syncApp.Stop(defaultGracefulTimeout); err != nil {
			slog.Error("Failed to stop sync application", "error", err)
		}
		if runErr != nil {
			return fmt.Errorf("sync cycle failed: %w", runErr)
		}
		return nil
	}

	slog.Info("Starting synchronizer", "address", address)

	errCh := make(chan error, 1)
	go func() {
		errCh <- syncApp.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
		if err := syncApp.Stop(defaultGracefulTimeout); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		if stopErr := syncApp.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop sync application", "error", stopErr)
		}
		return err
	}
}
