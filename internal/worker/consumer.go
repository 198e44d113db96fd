// Package worker 消费异步排序请求
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cv-ranker/internal/config"
	appLogger "cv-ranker/internal/logger"
	"cv-ranker/internal/service"
	"cv-ranker/internal/storage"
	"cv-ranker/internal/tracing"
)

const (
	defaultRetryInterval = 2 * time.Second
	defaultMaxRetries    = 3
)

// RankingRunner 消费者依赖的排序能力
type RankingRunner interface {
	Rank(ctx context.Context, req service.RankRequest) (*service.RankOutcome, error)
	MarkFailed(ctx context.Context, runUUID string, cause error)
}

// DeliverySource 消息来源，RabbitMQ 客户端实现了该接口
type DeliverySource interface {
	StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler storage.DeliveryHandler) (stop func(), err error)
}

// RankingConsumer 从请求队列读取排序请求并执行
type RankingConsumer struct {
	runner        RankingRunner
	source        DeliverySource
	queue         string
	prefetch      int
	workers       int
	retryInterval time.Duration
	maxRetries    int

	mu       sync.Mutex
	attempts map[string]int // 按 run_uuid 记录暂时性失败次数
	stops    []func()

	log    zerolog.Logger
	tracer trace.Tracer
}

// NewRankingConsumer 创建消费者
func NewRankingConsumer(runner RankingRunner, source DeliverySource, cfg *config.RabbitMQConfig) *RankingConsumer {
	c := &RankingConsumer{
		runner:        runner,
		source:        source,
		queue:         cfg.RankingRequestQueue,
		prefetch:      cfg.PrefetchCount,
		workers:       cfg.ConsumerWorkers,
		retryInterval: config.GetDuration(cfg.RetryInterval, defaultRetryInterval),
		maxRetries:    cfg.MaxRetries,
		attempts:      make(map[string]int),
		log:           appLogger.Component("ranking-consumer"),
		tracer:        otel.Tracer("cv-ranker/worker"),
	}
	if c.prefetch <= 0 {
		c.prefetch = 1
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	return c
}

// Start 启动 workers 个消费者
func (c *RankingConsumer) Start(ctx context.Context) error {
	for i := 0; i < c.workers; i++ {
		stop, err := c.source.StartConsumer(ctx, c.queue, c.prefetch, c.Handle)
		if err != nil {
			c.Stop()
			return fmt.Errorf("启动第 %d 个排序消费者失败: %w", i+1, err)
		}
		c.mu.Lock()
		c.stops = append(c.stops, stop)
		c.mu.Unlock()
	}
	c.log.Info().Str("queue", c.queue).Int("workers", c.workers).Msg("排序请求消费者已启动")
	return nil
}

// Stop 停止全部消费者并等待在途消息处理完
func (c *RankingConsumer) Stop() {
	c.mu.Lock()
	stops := c.stops
	c.stops = nil
	c.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

// Handle 处理一条排序请求
func (c *RankingConsumer) Handle(ctx context.Context, body []byte, redelivered bool) storage.DeliveryAction {
	ctx, span := c.tracer.Start(ctx, "RankingConsumer.Handle", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "rabbitmq"),
		attribute.String("messaging.destination.name", c.queue),
		attribute.Bool("messaging.rabbitmq.redelivered", redelivered),
	)

	var msg storage.RankingRequestMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.RunUUID == "" {
		if err == nil {
			err = errors.New("缺少 run_uuid")
		}
		c.log.Error().Err(err).Str("body", tracing.TruncateString(string(body), 200)).Msg("无法解析排序请求，丢弃")
		tracing.RecordRabbitMQNack(span, "", err.Error())
		return storage.Reject
	}
	log := c.log.With().Str("run_uuid", msg.RunUUID).Str("request_id", msg.RequestID).Logger()
	span.SetAttributes(
		attribute.String("messaging.message_id", msg.RequestID),
		attribute.String("ranking.run_uuid", msg.RunUUID),
	)

	_, err := c.runner.Rank(ctx, service.RankRequest{
		Job:        msg.Job,
		Candidates: msg.Candidates,
		Weights:    msg.Weights,
		RunUUID:    msg.RunUUID,
	})
	if err == nil {
		c.clearAttempts(msg.RunUUID)
		log.Info().Int("candidates", len(msg.Candidates)).Msg("异步排序完成")
		return storage.Ack
	}

	if ctx.Err() != nil {
		log.Warn().Err(err).Msg("消费者停止，排序请求重新入队")
		return storage.Requeue
	}

	if service.Retryable(err) {
		if n := c.recordAttempt(msg.RunUUID); n < c.maxRetries {
			log.Warn().Err(err).Int("attempt", n).Msg("排序暂时失败，稍后重试")
			select {
			case <-time.After(c.retryInterval):
			case <-ctx.Done():
			}
			return storage.Requeue
		}
		log.Error().Err(err).Int("max_retries", c.maxRetries).Msg("重试次数用尽")
	} else {
		log.Error().Err(err).Msg("排序请求无法处理")
	}

	c.clearAttempts(msg.RunUUID)
	tracing.RecordError(span, err, tracing.ErrorTypeRabbitMQ)
	tracing.RecordRabbitMQNack(span, msg.RequestID, err.Error())
	c.runner.MarkFailed(context.WithoutCancel(ctx), msg.RunUUID, err)
	return storage.Reject
}

func (c *RankingConsumer) recordAttempt(runUUID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[runUUID]++
	return c.attempts[runUUID]
}

func (c *RankingConsumer) clearAttempts(runUUID string) {
	c.mu.Lock()
	delete(c.attempts, runUUID)
	c.mu.Unlock()
}
