package repository

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis 指向无人监听的端口，只用于验证错误路径
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestSnapshotKeys(t *testing.T) {
	assert.Equal(t, "training:progress:snapshot:42", snapshotKey(42))
}

func TestSnapshotCache_ReportsBackendErrors(t *testing.T) {
	cache := NewSnapshotCache(unreachableRedis(t), time.Minute)
	ctx := context.Background()

	var dst map[string]interface{}
	hit, err := cache.Get(ctx, 1, &dst)
	assert.Error(t, err)
	assert.False(t, hit)

	assert.Error(t, cache.Set(ctx, 1, map[string]int{"a": 1}))
	assert.Error(t, cache.Invalidate(ctx, 1))
}

func TestTokenStore_NonPositiveTTLIsNoop(t *testing.T) {
	store := NewTokenStore(unreachableRedis(t))

	require.NoError(t, store.Revoke(context.Background(), "expired-token", 0))
	require.NoError(t, store.Revoke(context.Background(), "expired-token", -time.Second))

	_, err := store.IsRevoked(context.Background(), "any")
	assert.Error(t, err)
}
