package cache

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("cache: 键不存在")

// 为什么不用泛型
// type Cache[T any] interface
// 同一个缓存实例要同时放语句级结果和行级结果, 用 any + 类型转换更合适
//
// 没有TTL, 没有命名空间, 一切都编码在key里
// 写语句后整个缓存会被 Clear, 所以过期策略交给具体实现自己兜底
type Cache interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, val any) error

	// Clear 清空整个缓存
	// 远程实现可以用版本号自增代替物理删除
	Clear(ctx context.Context) error
}
