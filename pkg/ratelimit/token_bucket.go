package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket 实现令牌桶算法的限流器
type TokenBucket struct {
	rate           float64 // 每秒生成的令牌数
	capacity       float64 // 桶的容量
	tokens         float64 // 当前令牌数
	lastRefillTime time.Time
	mutex          sync.Mutex
	now            func() time.Time
}

// NewTokenBucket 创建令牌桶，capacity <= 0 时取 QPM 的一半
func NewTokenBucket(qpm int, capacity int) *TokenBucket {
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}
	tb := &TokenBucket{
		rate:     float64(qpm) / 60.0,
		capacity: float64(capacity),
		tokens:   float64(capacity), // 初始填满
		now:      time.Now,
	}
	tb.lastRefillTime = tb.now()
	return tb
}

// refill 根据经过的时间填充令牌，调用方持有锁
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.lastRefillTime = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// waitTime 距离下一个令牌可用的时间，调用方持有锁
func (tb *TokenBucket) waitTime() time.Duration {
	if tb.tokens >= 1.0 {
		return 0
	}
	if tb.rate <= 0 {
		return time.Hour
	}
	return time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
}

// Allow 判断是否允许通过一个请求，消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	ok, _ := tb.Reserve()
	return ok
}

// Reserve 尝试取一个令牌；失败时返回建议的重试等待时间
func (tb *TokenBucket) Reserve() (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, 0
	}
	return false, tb.waitTime()
}

// Wait 等待直到有令牌可用
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		ok, wait := tb.Reserve()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Limiter 按调用方（API Key 或客户端 IP）分别限流
type Limiter struct {
	qpm      int
	capacity int
	mu       sync.Mutex
	buckets  map[string]*TokenBucket
}

// NewLimiter 创建按 key 限流的限流器
func NewLimiter(qpm, capacity int) *Limiter {
	return &Limiter{qpm: qpm, capacity: capacity, buckets: make(map[string]*TokenBucket)}
}

// Reserve 为 key 取一个令牌
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	tb, ok := l.buckets[key]
	if !ok {
		tb = NewTokenBucket(l.qpm, l.capacity)
		l.buckets[key] = tb
	}
	l.mu.Unlock()
	return tb.Reserve()
}

// Len 当前跟踪的 key 数量
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
