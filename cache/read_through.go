package cache

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

var ErrFailedToRefreshCache = errors.New("cache: 刷新缓存失败")

// 缓存模式 read-through 模式
// 缓存中读不到数据就调用 LoadFunc, 拿到后设置到缓存里面

// ReadThroughCache 一定要赋值 LoadFunc
type ReadThroughCache struct {
	Cache
	LoadFunc func(ctx context.Context, key string) (any, error)
}

func (r *ReadThroughCache) Get(ctx context.Context, key string) (any, error) {
	val, err := r.Cache.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		val, err = r.LoadFunc(ctx, key)
		if err == nil {
			if err := r.Cache.Set(ctx, key, val); err != nil {
				return val, fmt.Errorf("%w, 原因: %s", ErrFailedToRefreshCache, err)
			}
		}
		return val, err
	}
	return val, err
}

// SingleflightCache 在 read-through 之上合并并发的未命中加载
// 多数用于读, 写很少; 能缓解缓存穿透问题
type SingleflightCache struct {
	ReadThroughCache
}

func NewSingleflightCache(cache Cache, loadFunc func(ctx context.Context, key string) (any, error)) *SingleflightCache {
	g := &singleflight.Group{}
	return &SingleflightCache{
		ReadThroughCache: ReadThroughCache{
			Cache: cache,
			LoadFunc: func(ctx context.Context, key string) (any, error) {
				val, err, _ := g.Do(key, func() (any, error) {
					return loadFunc(ctx, key)
				})
				return val, err
			},
		},
	}
}
