package storage

import (
	"github.com/glanceboard/storekit/pkg/cmap"
)

// MemoryBackend is a process-local backend with no persistence. Data lives
// until Clear or process exit. Used for ephemeral session-scoped results
// where durability is explicitly unwanted.
type MemoryBackend struct {
	namespace string
	data      *cmap.Map[any]
}

// NewMemoryBackend creates an empty in-memory backend for the namespace.
func NewMemoryBackend(namespace string) *MemoryBackend {
	return &MemoryBackend{
		namespace: namespace,
		data:      cmap.New[any](),
	}
}

// Namespace returns the namespace this backend owns.
func (m *MemoryBackend) Namespace() string {
	return m.namespace
}

// Get retrieves a value by key.
func (m *MemoryBackend) Get(key string) (any, bool) {
	return m.data.Get(key)
}

// Set stores a value, overwriting unconditionally.
func (m *MemoryBackend) Set(key string, value any) error {
	m.data.Set(key, value)
	return nil
}

// Delete removes a key. It reports whether the key existed.
func (m *MemoryBackend) Delete(key string) (bool, error) {
	return m.data.Delete(key), nil
}

// Exists checks if a key exists.
func (m *MemoryBackend) Exists(key string) bool {
	return m.data.Has(key)
}

// Clear removes all keys.
func (m *MemoryBackend) Clear() error {
	m.data.Clear()
	return nil
}

// Keys returns all keys.
func (m *MemoryBackend) Keys() []string {
	return m.data.Keys()
}

// Len returns the number of keys.
func (m *MemoryBackend) Len() int {
	return m.data.Count()
}

// GetMany retrieves the subset of keys that exist.
func (m *MemoryBackend) GetMany(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := m.data.Get(key); ok {
			out[key] = v
		}
	}
	return out
}

// SetMany stores all entries. Memory values need no serialization, so
// there is nothing to validate.
func (m *MemoryBackend) SetMany(entries map[string]any) error {
	for key, value := range entries {
		m.data.Set(key, value)
	}
	return nil
}

// DeleteMany removes the given keys and returns how many existed.
func (m *MemoryBackend) DeleteMany(keys []string) (int, error) {
	deleted := 0
	for _, key := range keys {
		if m.data.Delete(key) {
			deleted++
		}
	}
	return deleted, nil
}
