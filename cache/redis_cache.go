package cache

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

var _ Cache = new(RedisCache)

// RedisCache 可跨进程共享的外部缓存
//
// Clear 不做物理删除, 而是自增一个版本号
// 每个键都带上当前版本号, 旧版本的键等redis自己过期淘汰
// 这样就不需要按前缀删除的支持
type RedisCache struct {
	client redis.Cmdable

	// prefix 键前缀, 区分同一个redis上的多个使用方
	prefix string
}

func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "apdo"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisCache) Set(ctx context.Context, key string, val any) error {
	data, err := msgpack.Marshal(val)
	if err != nil {
		return err
	}
	versioned, err := r.versionedKey(ctx, key)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, versioned, data, 0).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string) (any, error) {
	versioned, err := r.versionedKey(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, versioned).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w, key: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	var val any
	if err := msgpack.Unmarshal(data, &val); err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Clear(ctx context.Context) error {
	return r.client.Incr(ctx, r.prefix+":version").Err()
}

func (r *RedisCache) versionedKey(ctx context.Context, key string) (string, error) {
	version, err := r.client.Get(ctx, r.prefix+":version").Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", r.prefix, version, key), nil
}
