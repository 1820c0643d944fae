package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

var _ Cache = new(LRUCache)

// LRUCache 控制住缓存住的键值对数量
// 超出容量时按最近最少使用淘汰
type LRUCache struct {
	cache *lru.Cache[string, any]
}

func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: c}, nil
}

func (l *LRUCache) Set(ctx context.Context, key string, val any) error {
	l.cache.Add(key, val)
	return nil
}

func (l *LRUCache) Get(ctx context.Context, key string) (any, error) {
	val, ok := l.cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w, key: %s", ErrKeyNotFound, key)
	}
	return val, nil
}

func (l *LRUCache) Clear(ctx context.Context) error {
	l.cache.Purge()
	return nil
}
