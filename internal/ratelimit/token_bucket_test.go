package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBucket(t *testing.T, capacity int, window time.Duration) (*RedisTokenBucket, *miniredis.Miniredis, *time.Time) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := NewRedisTokenBucket(client, Config{Capacity: capacity, Window: window})
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }
	return limiter, mr, &clock
}

func TestAllowExhaustsAndRefills(t *testing.T) {
	limiter, mr, clock := newTestBucket(t, 2, time.Second)
	ctx := context.Background()

	first, err := limiter.Allow(ctx, ScopeRemoval, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, int64(2), first.Limit)
	assert.Equal(t, int64(1), first.Remaining)
	assert.Zero(t, first.RetryAfter)

	second, err := limiter.Allow(ctx, ScopeRemoval, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.Equal(t, int64(0), second.Remaining)
	assert.InDelta(t, float64(time.Second), float64(second.ResetAfter), float64(2*time.Millisecond))

	denied, err := limiter.Allow(ctx, ScopeRemoval, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Greater(t, denied.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, denied.RetryAfter, 501*time.Millisecond)

	assert.True(t, mr.Exists("bgremove:ratelimit:remove_bg:203.0.113.7"))

	*clock = clock.Add(600 * time.Millisecond)
	refilled, err := limiter.Allow(ctx, ScopeRemoval, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, refilled.Allowed)
	assert.Equal(t, int64(0), refilled.Remaining)
}

func TestAllowKeepsClientsApart(t *testing.T) {
	limiter, _, _ := newTestBucket(t, 1, time.Minute)
	ctx := context.Background()

	d, err := limiter.Allow(ctx, ScopeRemoval, "198.51.100.1")
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = limiter.Allow(ctx, ScopeRemoval, "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = limiter.Allow(ctx, ScopeRemoval, "198.51.100.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllowRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewRedisTokenBucket(client, Config{Capacity: 1, Window: time.Minute})
	require.NoError(t, err)

	_, err = limiter.Allow(context.Background(), ScopeRemoval, "198.51.100.1")
	require.Error(t, err)
}

func TestNewRedisTokenBucketValidation(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisTokenBucket(nil, Config{Capacity: 10, Window: time.Minute})
	require.Error(t, err)
	_, err = NewRedisTokenBucket(client, Config{Capacity: 0, Window: time.Minute})
	require.Error(t, err)
	_, err = NewRedisTokenBucket(client, Config{Capacity: 10})
	require.Error(t, err)

	limiter, err := NewRedisTokenBucket(client, Config{Capacity: 60, Window: time.Minute, KeyPrefix: " "})
	require.NoError(t, err)
	assert.Equal(t, "bgremove:ratelimit:remove_bg:10.0.0.1", limiter.key("", "10.0.0.1"))
	assert.InDelta(t, 0.001, limiter.refillPerMS, 1e-9)
	assert.Equal(t, 2*time.Minute, limiter.ttl)
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{name: "first forwarded entry", forwarded: " 203.0.113.7 , 10.0.0.1", remoteAddr: "10.0.0.1:443", want: "203.0.113.7"},
		{name: "remote address", remoteAddr: "198.51.100.4:5555", want: "198.51.100.4"},
		{name: "ipv6 remote address", remoteAddr: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{name: "bare remote address", remoteAddr: "198.51.100.4", want: "198.51.100.4"},
		{name: "nothing", want: "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientKey(tt.forwarded, tt.remoteAddr))
		})
	}
}

func TestToInt64(t *testing.T) {
	for in, want := range map[any]int64{int64(7): 7, 3: 3, float64(2.9): 2, "42": 42} {
		got, err := toInt64(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := toInt64("x")
	assert.Error(t, err)
	_, err = toInt64([]byte("1"))
	assert.Error(t, err)
}
