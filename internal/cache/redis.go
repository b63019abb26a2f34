package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neversayno/match-backend/internal/config"
)

// TTLs. The blacklist set is deliberately short-lived because entries
// expire by wall clock and a stale cache would keep a lifted ban in force.
const (
	balanceTTL   = time.Hour
	blacklistTTL = 30 * time.Second
)

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

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// KeyForBalance generates the Redis key for a user's diamond balance.
func (c *RedisCache) KeyForBalance(userID, loginType string) string {
	return fmt.Sprintf("diamonds:%s:%s", loginType, userID)
}

func (c *RedisCache) UpdateBalance(ctx context.Context, userID, loginType string, diamonds int64) error {
	key := c.KeyForBalance(userID, loginType)
	// Always refresh TTL when updating
	return c.Client.Set(ctx, key, diamonds, balanceTTL).Err()
}

// GetBalance returns the cached balance, or found=false on a miss.
func (c *RedisCache) GetBalance(ctx context.Context, userID, loginType string) (int64, bool, error) {
	key := c.KeyForBalance(userID, loginType)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, balanceTTL).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // unreadable value counts as a miss
	}
	return n, true, nil
}

const blacklistKey = "blacklist:active"

// SetActiveBlacklist caches the active identity list as a JSON array.
func (c *RedisCache) SetActiveBlacklist(ctx context.Context, identities []string) error {
	b, err := json.Marshal(identities)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, blacklistKey, b, blacklistTTL).Err()
}

// GetActiveBlacklist returns the cached active identity list, or
// found=false on a miss.
func (c *RedisCache) GetActiveBlacklist(ctx context.Context) ([]string, bool, error) {
	val, err := c.Client.Get(ctx, blacklistKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	var identities []string
	if err := json.Unmarshal([]byte(val), &identities); err != nil {
		return nil, false, nil
	}
	return identities, true, nil
}

// InvalidateBlacklist drops the cached identity list, used after a new ban
// so it takes effect immediately.
func (c *RedisCache) InvalidateBlacklist(ctx context.Context) error {
	return c.Client.Del(ctx, blacklistKey).Err()
}
