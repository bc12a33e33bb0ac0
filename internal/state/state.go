// Package state persists the synchronizer's progress across restarts.
//
// All keys live in a single JSON snapshot. Every write re-serializes the whole
// snapshot and overwrites the previous one in the backing Storage; there is no
// per-key log and no partial-write recovery.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// LastUpdatedKey is the snapshot key holding the watermark
const LastUpdatedKey = "last_updated"

// ErrStore is returned when the snapshot cannot be serialized, read or written.
// The synchronizer treats it as fatal.
var ErrStore = errors.New("state store failure")

// Snapshot is the serialized form of all known keys
type Snapshot map[string]json.RawMessage

// Storage reads and writes the whole snapshot
//
//go:generate mockgen -destination=mocks/mock_storage.go -package=mocks github.com/stacklok/pgsearch-sync/internal/state Storage
type Storage interface {
	// Retrieve loads the snapshot. It returns an empty snapshot when nothing has been saved yet.
	Retrieve(ctx context.Context) (Snapshot, error)
	// Save overwrites the snapshot
	Save(ctx context.Context, snapshot Snapshot) error
}

// State is a key/value view over a Storage snapshot
type State struct {
	storage Storage

	mu   sync.RWMutex
	data Snapshot
}

// Load reads the current snapshot from storage
func Load(ctx context.Context, storage Storage) (*State, error) {
	data, err := storage.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to retrieve state: %w", ErrStore, err)
	}
	if data == nil {
		data = Snapshot{}
	}
	return &State{storage: storage, data: data}, nil
}

// Get decodes the value stored under key into dst.
// When the key is absent dst is left untouched, so callers pre-populate it with their default.
func (s *State) Get(key string, dst any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: failed to decode state key %q: %w", ErrStore, key, err)
	}
	return true, nil
}

// Set stores value under key and persists the whole snapshot.
// The in-memory view only changes once the storage write succeeded.
func (s *State) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: failed to encode state key %q: %w", ErrStore, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.data)
	next[key] = raw
	if err := s.storage.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: failed to save state: %w", ErrStore, err)
	}
	s.data = next
	return nil
}

// LastUpdated returns the watermark, or the zero time when no cycle has completed yet
func (s *State) LastUpdated() (time.Time, error) {
	var ts time.Time
	if _, err := s.Get(LastUpdatedKey, &ts); err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// SetLastUpdated advances the watermark. A value older than the stored one is
// ignored so the watermark never moves backwards.
func (s *State) SetLastUpdated(ctx context.Context, ts time.Time) error {
	current, err := s.LastUpdated()
	if err != nil {
		return err
	}
	if ts.Before(current) {
		slog.Warn("Ignoring watermark regression",
			"current", current.Format(time.RFC3339Nano),
			"requested", ts.Format(time.RFC3339Nano))
		return nil
	}
	return s.Set(ctx, LastUpdatedKey, ts.UTC())
}
