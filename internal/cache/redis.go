package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements a Redis-backed content-addressed store,
// for sharing build artifacts across processes
type RedisStore struct {
	client *redis.Client
	config Config
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Config holds common cache configuration
	Config Config
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		DB:     0,
		Config: DefaultConfig(),
	}
}

// NewRedisStore creates a new Redis store, verifying connectivity
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	cfg := config.Config
	if cfg.Prefix == "" {
		cfg = DefaultConfig()
	}
	return &RedisStore{client: client, config: cfg}, nil
}

// NewRedisStoreWithClient creates a new Redis store with an existing client
func NewRedisStoreWithClient(client *redis.Client, config Config) *RedisStore {
	return &RedisStore{client: client, config: config}
}

// Get retrieves a value from Redis
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.config.Prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss{Key: key}
		}
		return nil, err
	}
	return value, nil
}

// Set stores a value in Redis without expiry; content-addressed entries
// never go stale, they only become unreferenced
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.config.Prefix+key, value, 0).Err()
}

// Delete removes a value from Redis
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.config.Prefix+key).Err()
}

// Exists checks if a key exists in Redis
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.config.Prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes all values with this store's prefix
func (r *RedisStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.config.Prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the underlying Redis client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
