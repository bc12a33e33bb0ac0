package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/pgsearch-sync/database"
	"github.com/stacklok/pgsearch-sync/internal/config"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the content schema",
		Long: `Apply the embedded content schema migrations (film_work, person, genre and
their link tables) to the database named in the configuration file. This is
meant for local development and tests; production databases are owned by the
application that writes them.`,
		RunE: runMigrate,
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return fmt.Errorf("failed to get connection string: %w", err)
	}

	slog.Info("Applying database migrations",
		"host", cfg.Database.Host,
		"database", cfg.Database.Database)
	if err := database.MigrateUp(connString); err != nil {
		return err
	}

	m, err := database.NewMigrator(connString)
	if err != nil {
		slog.Warn("Unable to get migration version", "error", err)
		return nil
	}
	defer m.Close()

	version, dirty, err := m.Version()
	switch {
	case err != nil:
		slog.Warn("Unable to get migration version", "error", err)
	case dirty:
		slog.Warn("Database is in a dirty state", "version", version)
	default:
		slog.Info("Migrations applied successfully", "version", version)
	}
	return nil
}
