// Dealhound - Adaptive Deal Ranking and Content Diversification Engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dealhound/dealhound

package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process SnapshotStore for tests and the memory backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Versioned
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Versioned)}
}

// Get returns the current snapshot for key.
func (m *MemoryStore) Get(_ context.Context, key string) (Versioned, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return Versioned{}, ErrNotFound
	}
	// Copy so callers cannot mutate stored bytes.
	cp := make([]byte, len(v.Data))
	copy(cp, v.Data)
	return Versioned{Data: cp, Version: v.Version}, nil
}

// Put writes data for key iff the stored version equals expect.
func (m *MemoryStore) Put(_ context.Context, key string, data []byte, expect uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.data[key].Version
	if current != expect {
		return 0, ErrVersionConflict
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	next := current + 1
	m.data[key] = Versioned{Data: cp, Version: next}
	return next, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
