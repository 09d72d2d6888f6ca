package commands

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/motiz88/parcel/internal/build"
	"github.com/motiz88/parcel/internal/cache"
	"github.com/motiz88/parcel/internal/cli/config"
)

// newLogger builds the CLI logger; verbose enables debug output
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		cfg.DisableStacktrace = true
	}
	return cfg.Build()
}

// newCacheStore constructs the configured content cache backend
func newCacheStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemoryStore(), nil
	case "lru":
		return cache.NewLRUStore(cfg.LRUSize, cache.NewMemoryStore())
	case "redis":
		return cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// newBuilder wires a builder from the project configuration
func newBuilder(cfg *config.Config, root string, logger *zap.Logger) (*build.Builder, error) {
	store, err := newCacheStore(cfg.Cache)
	if err != nil {
		return nil, err
	}

	return build.NewBuilder(build.Options{
		Entries:     cfg.Entries,
		ProjectRoot: root,
		DistDir:     cfg.DistDir,
		Mode:        cfg.Mode,
		Cache:       store,
		Logger:      logger,
	}), nil
}
