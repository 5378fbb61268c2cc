package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/uzielB/backend-sistemagem-sub000/core"
)

const scanCount = 100

type RedisCache struct {
	raw    *redis.Client
	prefix string
}

var _ core.Cache = (*RedisCache)(nil)

// NewRedisCache connects to the configured Redis server and pings it.
func NewRedisCache(ctx context.Context, conf *core.Config) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         conf.Redis.Addr,
		Password:     conf.Redis.Password,
		DB:           conf.Redis.DB,
		MaxRetries:   2,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &RedisCache{raw: rdb, prefix: conf.Redis.Prefix}, nil
}

func (c *RedisCache) Close() error {
	return c.raw.Close()
}

func (c *RedisCache) withPrefix(key string) string {
	return c.prefix + key
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.raw.Get(ctx, c.withPrefix(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrap(err, "getting cache key")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrap(err, "decoding cached value")
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding cache value")
	}
	return errors.Wrap(c.raw.Set(ctx, c.withPrefix(key), data, ttl).Err(), "setting cache key")
}

func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.raw.Scan(ctx, 0, c.withPrefix(prefix)+"*", scanCount).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "scanning cache keys")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.raw.Del(ctx, keys...).Err(), "deleting cache keys")
}
