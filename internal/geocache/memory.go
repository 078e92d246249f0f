package geocache

import (
	"context"
	"sync"
)

// MemKV is an in-memory KV, used in tests and as a durable-tier stand-in
// when no persistent backend is configured.
type MemKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemKV creates an empty MemKV.
func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

// Get reads a value.
func (m *MemKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set writes a value.
func (m *MemKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete removes a value.
func (m *MemKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len reports the number of stored keys.
func (m *MemKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
