// Package config loads the parcel.yml project configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the project configuration
type Config struct {
	ProjectName string       `mapstructure:"project_name"`
	Entries     []string     `mapstructure:"entries"`
	DistDir     string       `mapstructure:"dist_dir"`
	Mode        string       `mapstructure:"mode"`
	Server      ServerConfig `mapstructure:"server"`
	Cache       CacheConfig  `mapstructure:"cache"`
	Watch       WatchConfig  `mapstructure:"watch"`
}

// ServerConfig configures the dev server
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// CacheConfig selects and configures the content cache backend
type CacheConfig struct {
	// Backend is "memory", "lru", or "redis"
	Backend string      `mapstructure:"backend"`
	LRUSize int         `mapstructure:"lru_size"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis cache backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WatchConfig configures watch mode
type WatchConfig struct {
	Ignore []string `mapstructure:"ignore"`
}

// Load loads the configuration from parcel.yml or parcel.yaml
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("entries", []string{"src/index.js"})
	v.SetDefault("dist_dir", "dist")
	v.SetDefault("mode", "development")
	v.SetDefault("server.port", 1234)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.lru_size", 2048)
	v.SetDefault("cache.redis.addr", "localhost:6379")

	v.SetConfigName("parcel")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// InProject checks if the current directory is a project root
func InProject() bool {
	if _, err := os.Stat("parcel.yml"); err == nil {
		return true
	}
	if _, err := os.Stat("parcel.yaml"); err == nil {
		return true
	}
	return false
}

// GetProjectRoot walks up from the working directory looking for parcel.yml,
// falling back to a package.json marker
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "parcel.yml")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "parcel.yaml")); err == nil {
			return dir, nil
		}

		if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a project (no parcel.yml found)")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if len(cfg.Entries) == 0 {
		return fmt.Errorf("entries must not be empty")
	}
	switch cfg.Mode {
	case "development", "production":
	default:
		return fmt.Errorf("mode must be \"development\" or \"production\", got: %s", cfg.Mode)
	}
	switch cfg.Cache.Backend {
	case "memory", "lru", "redis":
	default:
		return fmt.Errorf("cache.backend must be \"memory\", \"lru\", or \"redis\", got: %s", cfg.Cache.Backend)
	}
	return nil
}
