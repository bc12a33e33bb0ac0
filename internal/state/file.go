package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStorage persists the snapshot as a JSON file
type FileStorage struct {
	path string
}

// NewFileStorage creates a file-backed storage writing to path
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Retrieve implements Storage. A missing file is an empty snapshot (first run).
func (f *FileStorage) Retrieve(_ context.Context) (Snapshot, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", f.path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state file %s: %w", f.path, err)
	}
	return snapshot, nil
}

// Save implements Storage
func (f *FileStorage) Save(_ context.Context, snapshot Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write to temporary file first for atomic operation
	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary state file: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}
