package cache

import (
	"context"
	"fmt"
	"sync"
)

var _ Cache = new(BuildInMapCache)

type BuildInMapCacheOption func(cache *BuildInMapCache)

// BuildInMapCacheWithEvictedCallback 变更通知(回调函数)
func BuildInMapCacheWithEvictedCallback(fn func(key string, val any)) BuildInMapCacheOption {
	return func(cache *BuildInMapCache) {
		cache.onEvicted = fn
	}
}

// BuildInMapCache 进程内map缓存, 生命周期跟随单次运行
type BuildInMapCache struct {
	data  map[string]any
	mutex sync.RWMutex

	onEvicted func(key string, val any)
}

func NewBuildInMapCache(opts ...BuildInMapCacheOption) *BuildInMapCache {
	b := &BuildInMapCache{
		data: make(map[string]any, 100),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BuildInMapCache) Set(ctx context.Context, key string, val any) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.data[key] = val
	return nil
}

func (b *BuildInMapCache) Get(ctx context.Context, key string) (any, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	val, ok := b.data[key]
	if !ok {
		return nil, fmt.Errorf("%w, key: %s", ErrKeyNotFound, key)
	}
	return val, nil
}

func (b *BuildInMapCache) Clear(ctx context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.onEvicted != nil {
		for key, val := range b.data {
			b.onEvicted(key, val)
		}
	}
	b.data = make(map[string]any, 100)
	return nil
}
