package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend is an in-process Backend bounded by a byte capacity. It is
// the default store and the fake used by unit tests.
type MemoryBackend struct {
	mu       sync.RWMutex
	store    map[string]string
	capacity int64
	used     int64
}

// NewMemoryBackend creates a store holding at most capacity bytes of keys and
// values. Pass Unlimited to disable the limit.
func NewMemoryBackend(capacity int64) *MemoryBackend {
	return &MemoryBackend{store: make(map[string]string), capacity: capacity}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.store[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldSize int64
	if old, ok := m.store[key]; ok {
		oldSize = entrySize(key, old)
	}
	newSize := entrySize(key, value)
	if !fits(m.capacity, m.used, oldSize, newSize) {
		return ErrQuotaExceeded
	}
	m.store[key] = value
	m.used += newSize - oldSize
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.store[key]; ok {
		m.used -= entrySize(key, old)
		delete(m.store, key)
	}
	return nil
}

// Keys returns the stored keys starting with prefix, sorted.
func (m *MemoryBackend) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.store))
	for k := range m.store {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Used returns the number of bytes currently counted against capacity.
func (m *MemoryBackend) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
