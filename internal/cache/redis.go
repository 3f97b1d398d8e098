package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/campus-match/internal/config"
)

// AdmirerCountTTL bounds how stale a cached admirer count can get.
const AdmirerCountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

// FromClient wraps an existing client (tests, shared pools).
func FromClient(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForAdmirerCount generates Redis key for a user's pending admirer count.
func KeyForAdmirerCount(userID string) string {
	return "admirers:count:" + userID
}

func (c *RedisCache) SetAdmirerCount(ctx context.Context, userID string, count int64) error {
	// Always refresh TTL when updating
	return c.Client.Set(ctx, KeyForAdmirerCount(userID), count, AdmirerCountTTL).Err()
}

// GetAdmirerCount returns the cached count. ok is false on a cache miss.
func (c *RedisCache) GetAdmirerCount(ctx context.Context, userID string) (int64, bool, error) {
	key := KeyForAdmirerCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, AdmirerCountTTL).Err()

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// InvalidateAdmirerCounts drops the cached counts of every given user.
func (c *RedisCache) InvalidateAdmirerCounts(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = KeyForAdmirerCount(id)
	}
	return c.Client.Del(ctx, keys...).Err()
}
