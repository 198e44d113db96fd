package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurstAndRefill(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := NewTokenBucket(60, 2) // 每秒一个令牌
	tb.now = func() time.Time { return clock }
	tb.lastRefillTime = clock

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	ok, wait := tb.Reserve()
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	clock = clock.Add(500 * time.Millisecond)
	ok, wait = tb.Reserve()
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	clock = clock.Add(10 * time.Second)
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow(), "令牌数不超过容量")
	assert.False(t, tb.Allow())
}

func TestTokenBucketDefaultCapacity(t *testing.T) {
	tb := NewTokenBucket(1, 0)
	assert.Equal(t, 1.0, tb.capacity)
	tb = NewTokenBucket(600, 0)
	assert.Equal(t, 300.0, tb.capacity)
}

func TestWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestLimiterPerKey(t *testing.T) {
	l := NewLimiter(60, 1)
	ok, _ := l.Reserve("key-a")
	assert.True(t, ok)
	ok, _ = l.Reserve("key-a")
	assert.False(t, ok)

	ok, _ = l.Reserve("key-b")
	assert.True(t, ok, "不同调用方互不影响")
	assert.Equal(t, 2, l.Len())
}
