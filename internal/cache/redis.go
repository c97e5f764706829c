package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"heartlink-backend/internal/config"

	"github.com/redis/go-redis/v9"
)

const likeCountTTL = time.Hour

// RedisCache caches received-like counts. The database stays the source
// of truth; a miss or a redis failure falls back to a count query.
type RedisCache struct {
	Client *redis.Client
}

// New initializes the redis client from config. Only Addr is mandatory.
func New(cfg *config.RedisConfig) *RedisCache {
	opts := &redis.Options{Addr: cfg.Addr}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func likeCountKey(userID string) string {
	return fmt.Sprintf("likes:count:%s", userID)
}

// GetLikeCount returns the cached count and whether it was present.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID string) (int64, bool, error) {
	val, err := c.Client.Get(ctx, likeCountKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// SetLikeCount stores the count, refreshing the TTL.
func (c *RedisCache) SetLikeCount(ctx context.Context, userID string, count int64) error {
	return c.Client.Set(ctx, likeCountKey(userID), count, likeCountTTL).Err()
}

// InvalidateLikeCount drops the cached count after a like-graph mutation.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, userID string) error {
	return c.Client.Del(ctx, likeCountKey(userID)).Err()
}
