package ratelimit

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "bgremove:ratelimit"

// Scope names a family of requests that draw from the same bucket.
type Scope string

// ScopeRemoval covers both background-removal routes.
const ScopeRemoval Scope = "remove_bg"

type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// RetryAfter is zero when the request was allowed.
	RetryAfter time.Duration
	// ResetAfter is how long until the bucket is full again.
	ResetAfter time.Duration
}

type Config struct {
	Capacity  int
	Window    time.Duration
	KeyPrefix string
}

// RedisTokenBucket keeps one bucket per (scope, client) pair in a Redis hash.
// Refill and consumption run atomically in a Lua script so every replica of
// the API sees the same limit.
type RedisTokenBucket struct {
	client      redis.UniversalClient
	capacity    int64
	refillPerMS float64
	ttl         time.Duration
	keyPrefix   string
	now         func() time.Time
}

var takeToken = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "updated_ms")
local tokens = tonumber(state[1]) or capacity
local updated_ms = tonumber(state[2]) or now_ms

tokens = math.min(capacity, tokens + math.max(0, now_ms - updated_ms) * refill_per_ms)

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry_ms = math.ceil((1 - tokens) / refill_per_ms)
end
local reset_ms = math.ceil((capacity - tokens) / refill_per_ms)

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "updated_ms", tostring(now_ms))
redis.call("PEXPIRE", KEYS[1], ttl_ms)

return {allowed, math.floor(tokens), retry_ms, reset_ms}
`)

func NewRedisTokenBucket(client redis.UniversalClient, cfg Config) (*RedisTokenBucket, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}

	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	windowMS := max(cfg.Window.Milliseconds(), 1)

	return &RedisTokenBucket{
		client:      client,
		capacity:    int64(cfg.Capacity),
		refillPerMS: float64(cfg.Capacity) / float64(windowMS),
		ttl:         2 * cfg.Window,
		keyPrefix:   prefix,
		now:         time.Now,
	}, nil
}

// Allow takes one token from the bucket of client within scope.
func (l *RedisTokenBucket) Allow(ctx context.Context, scope Scope, client string) (Decision, error) {
	raw, err := takeToken.Run(ctx, l.client, []string{l.key(scope, client)},
		l.capacity,
		l.refillPerMS,
		l.now().UTC().UnixMilli(),
		l.ttl.Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 4 {
		return Decision{}, fmt.Errorf("invalid token bucket response: %v", raw)
	}
	var ints [4]int64
	for i, v := range values {
		if ints[i], err = toInt64(v); err != nil {
			return Decision{}, fmt.Errorf("parse token bucket field %d: %w", i, err)
		}
	}

	return Decision{
		Allowed:    ints[0] == 1,
		Limit:      l.capacity,
		Remaining:  ints[1],
		RetryAfter: time.Duration(ints[2]) * time.Millisecond,
		ResetAfter: time.Duration(ints[3]) * time.Millisecond,
	}, nil
}

func (l *RedisTokenBucket) key(scope Scope, client string) string {
	if scope == "" {
		scope = ScopeRemoval
	}
	return fmt.Sprintf("%s:%s:%s", l.keyPrefix, scope, client)
}

// ClientKey identifies the caller for rate limiting. forwarded is the value
// of a proxy-supplied header such as X-Forwarded-For (its first entry wins);
// when empty the host part of remoteAddr is used.
func ClientKey(forwarded, remoteAddr string) string {
	if i := strings.IndexByte(forwarded, ','); i >= 0 {
		forwarded = forwarded[:i]
	}
	if client := strings.TrimSpace(forwarded); client != "" {
		return client
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if host = strings.TrimSpace(host); host != "" {
		return host
	}
	return "anonymous"
}

func toInt64(in any) (int64, error) {
	switch v := in.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", in)
	}
}
