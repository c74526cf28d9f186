package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	snapshotKeyPrefix     = "training:progress:snapshot:"
	revokedTokenKeyPrefix = "training:auth:revoked:"
)

// SnapshotCache 用 Redis 缓存用户进度快照 (JSON)
type SnapshotCache struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{Redis: rdb, TTL: ttl}
}

func snapshotKey(userID uint) string {
	return fmt.Sprintf("%s%d", snapshotKeyPrefix, userID)
}

// Get 未命中时返回 false, nil
func (c *SnapshotCache) Get(ctx context.Context, userID uint, dst interface{}) (bool, error) {
	val, err := c.Redis.Get(ctx, snapshotKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *SnapshotCache) Set(ctx context.Context, userID uint, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.Redis.Set(ctx, snapshotKey(userID), data, c.TTL).Err()
}

func (c *SnapshotCache) Invalidate(ctx context.Context, userID uint) error {
	return c.Redis.Del(ctx, snapshotKey(userID)).Err()
}

// TokenStore 记录已注销的 JWT ID，过期时间与令牌剩余有效期一致
type TokenStore struct {
	Redis *redis.Client
}

func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{Redis: rdb}
}

func (s *TokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.Redis.Set(ctx, revokedTokenKeyPrefix+tokenID, "1", ttl).Err()
}

func (s *TokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.Redis.Exists(ctx, revokedTokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
