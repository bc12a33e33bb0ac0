package app

import (
	"github.com/stacklok/pgsearch-sync/internal/app/storage"
	"github.com/stacklok/pgsearch-sync/internal/status"
	"github.com/stacklok/pgsearch-sync/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator schedules sync cycles
	SyncCoordinator coordinator.Coordinator

	// Tracker holds the outcome of the last cycle
	Tracker *status.Tracker

	// StorageFactory owns the backend clients (optional in tests)
	StorageFactory storage.Factory
}
