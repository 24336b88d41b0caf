package cache

import (
	"context"
	"sync"
	"time"
)

var (
	globalCache Cache
	globalOnce  sync.Once
	globalMu    sync.RWMutex
)

// InitGlobalCache initializes the process-wide cache instance.
func InitGlobalCache(cfg Config) error {
	var err error
	globalOnce.Do(func() {
		globalMu.Lock()
		defer globalMu.Unlock()
		globalCache, err = NewCache(cfg)
	})
	return err
}

// GetGlobalCache returns the global cache, creating a default local
// cache if Init was never called.
func GetGlobalCache() Cache {
	globalMu.RLock()
	if globalCache != nil {
		globalMu.RUnlock()
		return globalCache
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCache == nil {
		globalCache = NewLocalCache(LocalConfig{
			DefaultExpiration: 5 * time.Minute,
			CleanupInterval:   10 * time.Minute,
		})
	}
	return globalCache
}

// SetGlobalCache replaces the global cache instance (mainly for tests).
func SetGlobalCache(c Cache) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCache = c
}

// CloseGlobalCache closes and clears the global instance.
func CloseGlobalCache() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCache != nil {
		err := globalCache.Close()
		globalCache = nil
		return err
	}
	return nil
}

// Get reads from the global cache.
func Get(ctx context.Context, key string) (interface{}, bool) {
	return GetGlobalCache().Get(ctx, key)
}

// Set writes to the global cache.
func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return GetGlobalCache().Set(ctx, key, value, expiration)
}

// Delete removes a key from the global cache.
func Delete(ctx context.Context, key string) error {
	return GetGlobalCache().Delete(ctx, key)
}

// Exists reports whether the key is present in the global cache.
func Exists(ctx context.Context, key string) bool {
	return GetGlobalCache().Exists(ctx, key)
}
