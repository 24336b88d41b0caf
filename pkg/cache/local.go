package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalCache is an in-process cache backed by patrickmn/go-cache.
type LocalCache struct {
	store *gocache.Cache
}

func NewLocalCache(cfg LocalConfig) *LocalCache {
	defaultExpiration := cfg.DefaultExpiration
	if defaultExpiration == 0 {
		defaultExpiration = 5 * time.Minute
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &LocalCache{store: gocache.New(defaultExpiration, cleanupInterval)}
}

func (l *LocalCache) Get(_ context.Context, key string) (interface{}, bool) {
	return l.store.Get(key)
}

func (l *LocalCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	l.store.Set(key, value, expiration)
	return nil
}

func (l *LocalCache) Delete(_ context.Context, key string) error {
	l.store.Delete(key)
	return nil
}

func (l *LocalCache) Exists(_ context.Context, key string) bool {
	_, ok := l.store.Get(key)
	return ok
}

func (l *LocalCache) Clear(_ context.Context) error {
	l.store.Flush()
	return nil
}

func (l *LocalCache) Close() error {
	return nil
}
