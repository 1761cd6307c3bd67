package ratelimiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript runs the refill-and-consume step atomically on the Redis
// side. Timestamps are passed in microseconds so the fractional refill math
// stays precise for sub-second rates.
var consumeScript = redis.NewScript(`
local tokens = redis.call('HGET', KEYS[1], 'tokens')
local last = redis.call('HGET', KEYS[1], 'last_refill')
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

if tokens == false then
	tokens = capacity
	last = now
else
	tokens = tonumber(tokens)
	last = tonumber(last)
end

local elapsed = (now - last) / 1000000
if elapsed > 0 then
	tokens = math.min(tokens + elapsed * rate, capacity)
end

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last_refill', now)
redis.call('EXPIRE', KEYS[1], ARGV[4])

return {allowed, tostring(tokens)}
`)

// RedisStore implements Store on top of Redis, for deployments where several
// instances must share one rate limit budget. Each (key, kind) bucket is a
// Redis hash; consume runs as a Lua script so concurrent checks from
// different instances never lose tokens.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	bucketTTL time.Duration
	scanBatch int64
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the prefix for all bucket keys. Defaults to "ratelimit:".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) {
		if prefix != "" {
			rs.keyPrefix = prefix
		}
	}
}

// WithBucketTTL sets the expiry applied to bucket hashes on every touch.
// Expiry is the distributed analogue of the memory store's stale cleanup:
// buckets that stop being used disappear on their own.
func WithBucketTTL(ttl time.Duration) RedisStoreOption {
	return func(rs *RedisStore) {
		if ttl > 0 {
			rs.bucketTTL = ttl
		}
	}
}

// WithScanBatchSize sets the SCAN page size used by Reset.
func WithScanBatchSize(size int64) RedisStoreOption {
	return func(rs *RedisStore) {
		if size > 0 {
			rs.scanBatch = size
		}
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreUnavailable
	}

	rs := &RedisStore{
		client:    client,
		keyPrefix: "ratelimit:",
		bucketTTL: 1 * time.Hour,
		scanBatch: 100,
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs, nil
}

func (rs *RedisStore) bucketKey(key, kind string) string {
	return rs.keyPrefix + key + ":" + kind
}

// Consume spends one token from the (key, kind) bucket.
func (rs *RedisStore) Consume(ctx context.Context, key, kind string, cfg Config) (Result, error) {
	capacity := cfg.Capacity()
	now := time.Now().UnixMicro()
	ttlSeconds := int64(rs.bucketTTL / time.Second)

	raw, err := consumeScript.Run(ctx, rs.client,
		[]string{rs.bucketKey(key, kind)},
		capacity, cfg.Rate, now, ttlSeconds,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	reply, ok := raw.([]any)
	if !ok || len(reply) != 2 {
		return Result{}, fmt.Errorf("%w: unexpected script reply %T", ErrStoreUnavailable, raw)
	}

	allowed, ok := reply[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("%w: unexpected allowed flag %T", ErrStoreUnavailable, reply[0])
	}
	tokensStr, ok := reply[1].(string)
	if !ok {
		return Result{}, fmt.Errorf("%w: unexpected token count %T", ErrStoreUnavailable, reply[1])
	}
	tokens, err := strconv.ParseFloat(tokensStr, 64)
	if err != nil {
		return Result{}, fmt.Errorf("%w: malformed token count %q", ErrStoreUnavailable, tokensStr)
	}

	if allowed == 1 {
		return Result{Allowed: true, Remaining: tokens}, nil
	}

	retryAfter := time.Duration((1 - tokens) / cfg.Rate * float64(time.Second))
	return Result{Allowed: false, Remaining: tokens, RetryAfter: retryAfter}, nil
}

// Reset removes all kind buckets for a key by scanning the key's prefix.
func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	pattern := rs.keyPrefix + key + ":*"

	iter := rs.client.Scan(ctx, 0, pattern, rs.scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := rs.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Healthcheck pings Redis.
func (rs *RedisStore) Healthcheck(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
