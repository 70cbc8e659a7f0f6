package kv

import (
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used in tests and as a degraded
// fallback when no durable backend can be opened.
type MemoryStore struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get returns the stored value and whether it was present.
func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.entries[key]
	return val, ok
}

// Set persists a value. The in-memory backend never fails.
func (m *MemoryStore) Set(key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return true
}

// Remove deletes a key.
func (m *MemoryStore) Remove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return true
}

// Keys returns all stored keys beginning with prefix.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0)
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
