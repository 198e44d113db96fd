package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"cv-ranker/internal/config"
	"cv-ranker/internal/constants"
	"cv-ranker/internal/tracing"
	"cv-ranker/internal/types"
)

// ErrNotFound 缓存未命中
var ErrNotFound = errors.New("缓存未命中")

var redisTracer = otel.Tracer("cv-ranker/storage/redis")

// 锁操作总是记录 span，其余按配置采样
var (
	rnd      = rand.New(rand.NewSource(time.Now().UnixNano()))
	rndMutex sync.Mutex
)

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// releaseLockScript 仅当值匹配时删除 key
var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// LeaderboardEntry 排行榜中的一条记录
type LeaderboardEntry struct {
	Rank          int          `json:"rank"`
	CandidateID   string       `json:"candidate_id"`
	CandidateName string       `json:"candidate_name"`
	TotalScore    float64      `json:"total_score"`
	Bucket        types.Bucket `json:"bucket"`
}

// ResultCache 排序结果缓存、排行榜与互斥锁
type ResultCache interface {
	CacheRankedResult(ctx context.Context, fingerprint, runUUID string, result *types.RankedResult, ttl time.Duration) error
	GetCachedRankedResult(ctx context.Context, fingerprint string) (string, *types.RankedResult, error)
	CacheLeaderboard(ctx context.Context, runUUID string, result *types.RankedResult, ttl time.Duration) error
	GetLeaderboardPage(ctx context.Context, runUUID string, cursor, limit int64) ([]LeaderboardEntry, int64, error)
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error)
}

var _ ResultCache = (*Redis)(nil)

// Redis wraps the Redis client
type Redis struct {
	Client     *redis.Client
	config     *config.RedisConfig
	sampleRate float64
}

// NewRedis 创建 Redis 客户端并检查连通性
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg, sampleRate: cfg.TraceSampleRate}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// startSpan 按采样率创建 span，未采样时返回 nil
func (r *Redis) startSpan(ctx context.Context, name, operation, key string, always bool) (context.Context, trace.Span) {
	if !always && randFloat() >= r.sampleRate {
		return ctx, nil
	}
	ctx, span := redisTracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.Int("db.redis.database_index", r.config.DB),
		attribute.String("db.operation", operation),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// CacheRankedResult 按请求指纹缓存排序结果及对应的运行 UUID
func (r *Redis) CacheRankedResult(ctx context.Context, fingerprint, runUUID string, result *types.RankedResult, ttl time.Duration) (err error) {
	resultKey := fmt.Sprintf(constants.KeyRankingResult, fingerprint)
	ctx, span := r.startSpan(ctx, "Redis.CacheRankedResult", "SET", resultKey, false)
	defer func() { endSpan(span, err) }()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化排序结果失败: %w", err)
	}
	pipe := r.Client.TxPipeline()
	pipe.Set(ctx, resultKey, payload, ttl)
	pipe.Set(ctx, fmt.Sprintf(constants.KeyRankingRunByFingerprint, fingerprint), runUUID, ttl)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("缓存排序结果失败: %w", err)
	}
	return nil
}

// GetCachedRankedResult 读取缓存的排序结果，未命中返回 ErrNotFound
func (r *Redis) GetCachedRankedResult(ctx context.Context, fingerprint string) (runUUID string, result *types.RankedResult, err error) {
	resultKey := fmt.Sprintf(constants.KeyRankingResult, fingerprint)
	ctx, span := r.startSpan(ctx, "Redis.GetCachedRankedResult", "MGET", resultKey, false)
	defer func() { endSpan(span, err) }()

	vals, err := r.Client.MGet(ctx, resultKey, fmt.Sprintf(constants.KeyRankingRunByFingerprint, fingerprint)).Result()
	if err != nil {
		return "", nil, fmt.Errorf("读取排序缓存失败: %w", err)
	}
	payload, ok := vals[0].(string)
	if !ok || payload == "" {
		return "", nil, ErrNotFound
	}
	runUUID, _ = vals[1].(string)

	result = &types.RankedResult{}
	if err = json.Unmarshal([]byte(payload), result); err != nil {
		return "", nil, fmt.Errorf("解析排序缓存失败: %w", err)
	}
	return runUUID, result, nil
}

// CacheLeaderboard 把名次写入 ZSET，分数越高名次越靠前
func (r *Redis) CacheLeaderboard(ctx context.Context, runUUID string, result *types.RankedResult, ttl time.Duration) (err error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil
	}
	key := fmt.Sprintf(constants.KeyRankingLeaderboard, runUUID)
	ctx, span := r.startSpan(ctx, "Redis.CacheLeaderboard", "ZADD", key, false)
	defer func() { endSpan(span, err) }()

	members, err := leaderboardMembers(result)
	if err != nil {
		return err
	}
	pipe := r.Client.Pipeline()
	pipe.Del(ctx, key)
	pipe.ZAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// leaderboardMembers 以倒序名次作为分数，ZREVRANGE 即按原始名次取出
func leaderboardMembers(result *types.RankedResult) ([]redis.Z, error) {
	n := len(result.Candidates)
	members := make([]redis.Z, n)
	for i, c := range result.Candidates {
		raw, err := json.Marshal(LeaderboardEntry{
			Rank:          c.Rank,
			CandidateID:   c.StableKey(),
			CandidateName: c.CandidateName,
			TotalScore:    c.TotalScore,
			Bucket:        c.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("序列化排行榜条目失败: %w", err)
		}
		members[i] = redis.Z{Score: float64(n - i), Member: string(raw)}
	}
	return members, nil
}

// GetLeaderboardPage 分页读取排行榜，排行榜不存在时返回 ErrNotFound
func (r *Redis) GetLeaderboardPage(ctx context.Context, runUUID string, cursor, limit int64) (entries []LeaderboardEntry, total int64, err error) {
	key := fmt.Sprintf(constants.KeyRankingLeaderboard, runUUID)
	ctx, span := r.startSpan(ctx, "Redis.GetLeaderboardPage", "ZREVRANGE", key, false)
	defer func() { endSpan(span, err) }()
	if span != nil {
		span.SetAttributes(attribute.Int64("redis.cursor", cursor), attribute.Int64("redis.limit", limit))
	}

	pipe := r.Client.Pipeline()
	countCmd := pipe.ZCard(ctx, key)
	rangeCmd := pipe.ZRevRange(ctx, key, cursor, cursor+limit-1)
	if _, err = pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}

	total = countCmd.Val()
	if total == 0 {
		return nil, 0, ErrNotFound
	}
	raw := rangeCmd.Val()
	entries = make([]LeaderboardEntry, 0, len(raw))
	for _, m := range raw {
		var e LeaderboardEntry
		if err = json.Unmarshal([]byte(m), &e); err != nil {
			return nil, 0, fmt.Errorf("解析排行榜条目失败: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, nil
}

// AcquireLock 尝试获取分布式锁，被占用时返回空字符串
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (token string, err error) {
	ctx, span := r.startSpan(ctx, "Redis.AcquireLock", "SET NX", lockKey, true)
	defer func() { endSpan(span, err) }()

	token = uuid.NewString()
	ok, err := r.Client.SetNX(ctx, lockKey, token, expiration).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		span.SetAttributes(attribute.Bool("lock.acquired", false))
		return "", nil
	}
	span.SetAttributes(attribute.Bool("lock.acquired", true))
	return token, nil
}

// ReleaseLock 释放分布式锁，只有持有者能释放
func (r *Redis) ReleaseLock(ctx context.Context, lockKey, lockValue string) (released bool, err error) {
	ctx, span := r.startSpan(ctx, "Redis.ReleaseLock", "EVALSHA", lockKey, true)
	defer func() { endSpan(span, err) }()

	n, err := releaseLockScript.Run(ctx, r.Client, []string{lockKey}, lockValue).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
