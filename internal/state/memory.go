package state

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStorage keeps the serialized snapshot in memory.
// It is used in tests and for dry runs.
type MemoryStorage struct {
	mu   sync.Mutex
	blob []byte
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Retrieve implements Storage
func (m *MemoryStorage) Retrieve(_ context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.blob) == 0 {
		return Snapshot{}, nil
	}
	var snapshot Snapshot
	if err := json.Unmarshal(m.blob, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Save implements Storage
func (m *MemoryStorage) Save(_ context.Context, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.blob = data
	m.mu.Unlock()
	return nil
}
