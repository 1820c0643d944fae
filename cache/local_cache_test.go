package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 三个进程内实现走同一组用例
func localCaches(t *testing.T) map[string]Cache {
	t.Helper()
	lru, err := NewLRUCache(100)
	require.NoError(t, err)
	return map[string]Cache{
		"map":     NewBuildInMapCache(),
		"lru":     lru,
		"gocache": NewGoCache(0),
	}
}

func Test_LocalCache_SetGetClear(t *testing.T) {
	for name, c := range localCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := c.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, c.Set(ctx, "k1", "v1"))
			require.NoError(t, c.Set(ctx, "k2", []byte{1, 2}))

			val, err := c.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, "v1", val)

			// 覆盖写
			require.NoError(t, c.Set(ctx, "k1", "v2"))
			val, err = c.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, "v2", val)

			require.NoError(t, c.Clear(ctx))
			_, err = c.Get(ctx, "k1")
			assert.ErrorIs(t, err, ErrKeyNotFound)
			_, err = c.Get(ctx, "k2")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func Test_BuildInMapCache_EvictedCallback(t *testing.T) {
	evicted := make(map[string]any)
	c := NewBuildInMapCache(BuildInMapCacheWithEvictedCallback(func(key string, val any) {
		evicted[key] = val
	}))
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k1", "v1"))
	require.NoError(t, c.Set(ctx, "k2", "v2"))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, map[string]any{"k1": "v1", "k2": "v2"}, evicted)
}

func Test_LRUCache_Eviction(t *testing.T) {
	c, err := NewLRUCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", 1))
	require.NoError(t, c.Set(ctx, "k2", 2))
	require.NoError(t, c.Set(ctx, "k3", 3))

	// 容量2, 最老的k1被淘汰
	_, err = c.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	val, err := c.Get(ctx, "k3")
	require.NoError(t, err)
	assert.Equal(t, 3, val)
}
