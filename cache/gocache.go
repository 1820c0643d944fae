package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Cache = new(GoCache)

// GoCache 适配 patrickmn/go-cache
// expiration 是兜底过期时间, 传0代表永不过期
type GoCache struct {
	cache      *gocache.Cache
	expiration time.Duration
}

func NewGoCache(expiration time.Duration) *GoCache {
	exp := expiration
	if exp == 0 {
		exp = gocache.NoExpiration
	}
	return &GoCache{
		cache:      gocache.New(exp, 2*exp),
		expiration: exp,
	}
}

func (g *GoCache) Set(ctx context.Context, key string, val any) error {
	g.cache.Set(key, val, g.expiration)
	return nil
}

func (g *GoCache) Get(ctx context.Context, key string) (any, error) {
	val, ok := g.cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w, key: %s", ErrKeyNotFound, key)
	}
	return val, nil
}

func (g *GoCache) Clear(ctx context.Context) error {
	g.cache.Flush()
	return nil
}
