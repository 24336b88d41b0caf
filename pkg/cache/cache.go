package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the backend-agnostic cache contract.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
	Clear(ctx context.Context) error
	Close() error
}

// Config selects and configures the cache backend.
type Config struct {
	Type  string // "local" or "redis"
	Redis RedisConfig
	Local LocalConfig
}

// RedisConfig holds go-redis connection options.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LocalConfig holds in-process cache options.
type LocalConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// NewCache builds a cache from config.
func NewCache(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisCache(cfg.Redis)
	case "local", "":
		return NewLocalCache(cfg.Local), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
