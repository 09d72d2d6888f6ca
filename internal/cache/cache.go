// Package cache provides the content-addressed storage boundary for build
// artifacts. Values are stored and retrieved by opaque string keys; backends
// are pluggable and the engine never assumes a particular storage medium.
package cache

import (
	"context"
)

// Store defines the interface for all cache backends
type Store interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes all values from the cache
	Clear(ctx context.Context) error
}

// Config holds common configuration for cache backends
type Config struct {
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		Prefix: "parcel:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	_, ok := err.(ErrCacheMiss)
	return ok
}
