package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coderisedev/cs-sub003/internal/domain"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const DefaultRedisPrefix = "tenancy:tenant:"

// setUnlessInvalidated writes KEYS[1] only when no invalidation marker
// KEYS[2] is present.
var setUnlessInvalidated = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// Redis shares tenant lookups and their invalidation across instances.
// Redis errors degrade to cache misses; they never fail a request.
//
// Delete leaves a marker for one TTL so a lookup still in flight on another
// instance cannot repopulate the key with a snapshot taken before the
// invalidation.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, prefix string, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix, logger: logger}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (c *Redis) Get(ctx context.Context, key string) (*domain.Tenant, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("tenant cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var t domain.Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		c.logger.Warn("tenant cache entry corrupt", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return nil, false
	}
	return &t, true
}

func (c *Redis) Set(ctx context.Context, key string, t *domain.Tenant) {
	raw, err := json.Marshal(t)
	if err != nil {
		c.logger.Warn("tenant cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	keys := []string{c.prefix + key, c.tombstone(key)}
	if err := setUnlessInvalidated.Run(ctx, c.client, keys, raw, c.ttl.Milliseconds()).Err(); err != nil {
		c.logger.Warn("tenant cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Redis) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full...)
		for _, k := range keys {
			pipe.Set(ctx, c.tombstone(k), 1, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("tenant cache invalidation failed", zap.Strings("keys", full), zap.Error(err))
	}
}

func (c *Redis) tombstone(key string) string {
	return c.prefix + "invalidated:" + key
}
