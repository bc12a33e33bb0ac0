// Package app provides application lifecycle management for the synchronizer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/pgsearch-sync/internal/config"
)

// SyncApp runs the sync loop next to the operational HTTP server
type SyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx          context.Context
	cancelFunc   context.CancelFunc
	shutdownOnce sync.Once
	shutdownErr  error
}

// Start runs the sync coordinator and the HTTP server until Stop is called
// or one of them fails. A fatal coordinator error shuts the server down and
// is returned.
func (app *SyncApp) Start() error {
	g, ctx := errgroup.WithContext(app.ctx)

	g.Go(func() error {
		err := app.components.SyncCoordinator.Start(ctx)
		if shutdownErr := app.shutdownServer(defaultShutdownTimeout); shutdownErr != nil {
			slog.Error("Failed to shut down HTTP server", "error", shutdownErr)
		}
		if err != nil {
			return fmt.Errorf("sync coordinator failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "address", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// RunOnce runs a single sync cycle without starting the HTTP server
func (app *SyncApp) RunOnce(ctx context.Context) error {
	return app.components.SyncCoordinator.RunOnce(ctx)
}

// Stop gracefully stops the application with the given timeout.
// It stops the sync coordinator, shuts down the HTTP server and closes the backend clients.
func (app *SyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down...")

	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err := app.shutdownServer(timeout); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

func (app *SyncApp) shutdownServer(timeout time.Duration) error {
	app.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		app.shutdownErr = app.httpServer.Shutdown(ctx)
	})
	return app.shutdownErr
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *SyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the application components
func (app *SyncApp) GetComponents() *AppComponents {
	return app.components
}
