// Package cache keeps rendered leaderboard pages in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/arena/internal/domain/types"
)

// setPage writes one page only while the generation is unchanged. The hash
// TTL is set when the hash is created and never extended, so a page is never
// older than the TTL.
var setPage = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
if redis.call('TTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

const (
	defaultKey         = "arena:leaderboard"
	defaultTTL         = 30 * time.Second
	defaultDialTimeout = 5 * time.Second
)

// Option applies a configuration option to the RedisCache.
type Option func(*RedisCache)

// WithTTL sets how long a cached page lives.
func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKey overrides the hash key, e.g. to share one Redis between deployments.
func WithKey(key string) Option {
	return func(c *RedisCache) {
		if key != "" {
			c.key = key
		}
	}
}

// RedisCache stores one hash field per requested page size so that every
// page can be dropped with a single DEL. A separate counter key holds the
// generation bumped by Invalidate.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func (c *RedisCache) genKey() string { return c.key + ":gen" }

// NewRedisCache connects and pings Redis.
func NewRedisCache(addr, password string, db int, opts ...Option) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := &RedisCache{client: client, key: defaultKey, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached page for limit. ok is false on a miss.
func (c *RedisCache) Get(ctx context.Context, limit int) ([]types.Entry, bool, error) {
	data, err := c.client.HGet(ctx, c.key, strconv.Itoa(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var entries []types.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return entries, true, nil
}

// Generation returns the current invalidation counter, 0 before the first
// invalidation.
func (c *RedisCache) Generation(ctx context.Context) (uint64, error) {
	gen, err := c.client.Get(ctx, c.genKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache generation: %w", err)
	}
	return gen, nil
}

// Set stores the page for limit if gen is still current. stored is false
// when an invalidation happened since gen was read.
func (c *RedisCache) Set(ctx context.Context, gen uint64, limit int, entries []types.Entry) (bool, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return false, fmt.Errorf("cache encode: %w", err)
	}
	n, err := setPage.Run(ctx, c.client,
		[]string{c.key, c.genKey()},
		strconv.FormatUint(gen, 10), strconv.Itoa(limit), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cache set: %w", err)
	}
	return n == 1, nil
}

// Invalidate drops every cached page and bumps the generation.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, c.key)
		p.Incr(ctx, c.genKey())
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Limits lists the page sizes currently cached, for warming.
func (c *RedisCache) Limits(ctx context.Context) ([]int, error) {
	fields, err := c.client.HKeys(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("cache keys: %w", err)
	}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
