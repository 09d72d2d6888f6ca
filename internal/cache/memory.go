package cache

import (
	"context"
	"sync"
)

// MemoryStore implements an in-memory content-addressed store.
// Entries are immutable once written; there is no expiry.
type MemoryStore struct {
	data   sync.Map
	config Config
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(DefaultConfig())
}

// NewMemoryStoreWithConfig creates a new in-memory store with custom configuration
func NewMemoryStoreWithConfig(config Config) *MemoryStore {
	return &MemoryStore{config: config}
}

// Get retrieves a value from the store
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	value, ok := m.data.Load(m.config.Prefix + key)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}
	return value.([]byte), nil
}

// Set stores a value in the store
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	m.data.Store(m.config.Prefix+key, buf)
	return nil
}

// Delete removes a value from the store
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Exists checks if a key exists in the store
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data.Load(m.config.Prefix + key)
	return ok, nil
}

// Clear removes all values from the store
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.data.Range(func(key, _ interface{}) bool {
		m.data.Delete(key)
		return true
	})
	return nil
}
