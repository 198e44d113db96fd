package outbox // 发件箱模式：事件与业务数据同一事务落库，由中继异步投递

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cv-ranker/internal/config"
	appLogger "cv-ranker/internal/logger"
	"cv-ranker/internal/storage/models"
	"cv-ranker/internal/tracing"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	defaultMaxRetries      = 5
)

// Publisher 消息发布器，RabbitMQ 客户端实现了该接口
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// NewMessage 构造一条待投递的发件箱消息
func NewMessage(aggregateID, eventType, exchange, routingKey string, payload interface{}) (models.OutboxMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.OutboxMessage{}, fmt.Errorf("序列化 %s 事件失败: %w", eventType, err)
	}
	return models.OutboxMessage{
		AggregateID:      aggregateID,
		EventType:        eventType,
		Payload:          string(raw),
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Status:           models.OutboxStatusPending,
	}, nil
}

// MessageRelay 轮询 outbox 表并将消息发布到消息代理
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	log             zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	done            chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
	tracer          trace.Tracer
}

// NewMessageRelay 创建中继，cfg 为 nil 或字段缺省时使用默认值
func NewMessageRelay(db *gorm.DB, publisher Publisher, cfg *config.OutboxConfig) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		log:             appLogger.Component("outbox"),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		maxRetries:      defaultMaxRetries,
		done:            make(chan struct{}),
		tracer:          otel.Tracer("cv-ranker/outbox"),
	}
	if cfg != nil {
		if d, err := time.ParseDuration(cfg.PollInterval); err == nil && d > 0 {
			r.pollingInterval = d
		}
		if cfg.BatchSize > 0 {
			r.batchSize = cfg.BatchSize
		}
		if cfg.MaxRetries > 0 {
			r.maxRetries = cfg.MaxRetries
		}
	}
	return r
}

// Start 开始后台轮询
func (r *MessageRelay) Start() {
	r.log.Info().Dur("interval", r.pollingInterval).Int("batch", r.batchSize).Msg("发件箱中继启动")
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.log.Info().Msg("发件箱中继已停止")
				return
			case <-ticker.C:
				if _, err := r.ProcessPending(context.Background()); err != nil {
					r.log.Error().Err(err).Msg("处理待投递消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束，可重复调用
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() {
		r.log.Info().Msg("发件箱中继正在停止")
		close(r.done)
	})
	r.wg.Wait()
}

// ProcessPending 取一批待投递消息发布出去，返回本批处理的条数
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	// 空轮询不创建 span
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED 允许多实例并行拉取互不重叠的批次
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, fmt.Errorf("查询待投递消息失败: %w", err)
	}
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))),
	)
	defer span.End()
	r.log.Debug().Int("count", len(messages)).Msg("拉取到待投递消息")

	for i := range messages {
		msg := &messages[i]
		pubErr := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if pubErr != nil {
			r.log.Warn().Err(pubErr).
				Uint64("id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retry", msg.RetryCount+1).
				Msg("发布发件箱消息失败")
		}
		applyPublishResult(msg, pubErr, r.maxRetries, time.Now())
		if msg.Status == models.OutboxStatusFailed {
			tracing.RecordError(span, pubErr, tracing.ErrorTypeRabbitMQ)
		}

		// 更新失败整批回滚，消息留待下次轮询
		if err := tx.Save(msg).Error; err != nil {
			return 0, fmt.Errorf("更新发件箱消息 %d 失败: %w", msg.ID, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return len(messages), nil
}

// applyPublishResult 根据发布结果推进消息状态，重试次数达到上限后标记为 FAILED
func applyPublishResult(msg *models.OutboxMessage, pubErr error, maxRetries int, now time.Time) {
	if pubErr != nil {
		msg.RetryCount++
		msg.ErrorMessage = pubErr.Error()
		if msg.RetryCount >= maxRetries {
			msg.Status = models.OutboxStatusFailed
		}
		return
	}
	msg.Status = models.OutboxStatusSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}
