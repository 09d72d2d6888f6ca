package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
)

// LRUStore wraps a backing store with a bounded in-memory LRU layer.
// Hot artifacts (generated output for frequently rebuilt assets) are served
// from memory; everything falls through to the backing store.
type LRUStore struct {
	lru     *lru.Cache
	backing Store
}

// NewLRUStore creates an LRU layer of the given size in front of backing
func NewLRUStore(size int, backing Store) (*LRUStore, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LRUStore{lru: l, backing: backing}, nil
}

// Get checks the LRU layer first, then the backing store
func (s *LRUStore) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := s.lru.Get(key); ok {
		return value.([]byte), nil
	}
	value, err := s.backing.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.lru.Add(key, value)
	return value, nil
}

// Set writes through to the backing store and populates the LRU layer
func (s *LRUStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.backing.Set(ctx, key, value); err != nil {
		return err
	}
	s.lru.Add(key, value)
	return nil
}

// Delete removes the key from both layers
func (s *LRUStore) Delete(ctx context.Context, key string) error {
	s.lru.Remove(key)
	return s.backing.Delete(ctx, key)
}

// Exists checks the LRU layer first, then the backing store
func (s *LRUStore) Exists(ctx context.Context, key string) (bool, error) {
	if s.lru.Contains(key) {
		return true, nil
	}
	return s.backing.Exists(ctx, key)
}

// Clear purges both layers
func (s *LRUStore) Clear(ctx context.Context) error {
	s.lru.Purge()
	return s.backing.Clear(ctx)
}
