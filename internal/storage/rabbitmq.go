package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"cv-ranker/internal/config"
	appLogger "cv-ranker/internal/logger"
)

// MessageQueue 消息队列接口
type MessageQueue interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
	EnsureExchange(exchangeName, exchangeType string, durable bool) error
	EnsureQueue(queueName string, durable bool) error
	BindQueue(queueName, exchangeName, routingKey string) error
	Close() error
}

var _ MessageQueue = (*RabbitMQ)(nil)

// DeliveryAction 消费者处理完一条消息后的确认方式
type DeliveryAction int

const (
	// Ack 处理成功
	Ack DeliveryAction = iota
	// Requeue 暂时性失败，重新入队
	Requeue
	// Reject 无法处理的消息，丢弃不再入队
	Reject
)

// DeliveryHandler 处理一条消息，redelivered 表示该消息此前投递过
type DeliveryHandler func(ctx context.Context, body []byte, redelivered bool) DeliveryAction

var errNoChannel = errors.New("无法获取RabbitMQ通道")

// RabbitMQ 提供消息队列功能
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	mu           sync.Mutex
	declared     map[string]bool // 已声明的 exchange/queue/binding
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
	log          zerolog.Logger
}

// NewRabbitMQ 连接 broker 并验证能打开通道
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}

	mq := &RabbitMQ{
		conn:     conn,
		declared: make(map[string]bool),
		cfg:      cfg,
		log:      appLogger.Component("rabbitmq"),
	}
	ch := mq.getChannel()
	if ch == nil {
		conn.Close()
		return nil, errNoChannel
	}
	mq.putChannel(ch)

	mq.log.Info().Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

// getChannel 优先复用池中未关闭的通道
func (r *RabbitMQ) getChannel() *amqp.Channel {
	for v := r.channelPool.Get(); v != nil; v = r.channelPool.Get() {
		if ch := v.(*amqp.Channel); !ch.IsClosed() {
			return ch
		}
	}
	ch, err := r.conn.Channel()
	if err != nil {
		r.log.Error().Err(err).Msg("创建RabbitMQ通道失败")
		return nil
	}
	return ch
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// IsClosed 连接是否已断开
func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

// declareOnce 同一个 key 只声明一次；声明失败的通道会被 broker 关闭，不会回到池中
func (r *RabbitMQ) declareOnce(key string, declare func(ch *amqp.Channel) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared[key] {
		return nil
	}
	ch := r.getChannel()
	if ch == nil {
		return errNoChannel
	}
	defer r.putChannel(ch)
	if err := declare(ch); err != nil {
		return err
	}
	r.declared[key] = true
	return nil
}

// EnsureExchange 声明 exchange，默认交换机不允许声明
func (r *RabbitMQ) EnsureExchange(exchangeName, exchangeType string, durable bool) error {
	if exchangeName == "" || exchangeName == "amq.default" || exchangeName == "default" {
		return fmt.Errorf("无效的exchange名称: %q", exchangeName)
	}
	return r.declareOnce("exchange:"+exchangeName, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(exchangeName, exchangeType, durable, false, false, false, nil); err != nil {
			return fmt.Errorf("声明exchange %s 失败: %w", exchangeName, err)
		}
		r.log.Info().Str("exchange", exchangeName).Str("type", exchangeType).Msg("已声明exchange")
		return nil
	})
}

// EnsureQueue 声明持久或临时队列
func (r *RabbitMQ) EnsureQueue(queueName string, durable bool) error {
	return r.ensureQueue(queueName, durable, nil)
}

func (r *RabbitMQ) ensureQueue(queueName string, durable bool, args amqp.Table) error {
	return r.declareOnce("queue:"+queueName, func(ch *amqp.Channel) error {
		if _, err := ch.QueueDeclare(queueName, durable, false, false, false, args); err != nil {
			return fmt.Errorf("声明队列 %s 失败: %w", queueName, err)
		}
		r.log.Info().Str("queue", queueName).Msg("已声明队列")
		return nil
	})
}

// BindQueue 按 routing key 绑定队列
func (r *RabbitMQ) BindQueue(queueName, exchangeName, routingKey string) error {
	key := fmt.Sprintf("binding:%s:%s:%s", exchangeName, queueName, routingKey)
	return r.declareOnce(key, func(ch *amqp.Channel) error {
		if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
			return fmt.Errorf("绑定队列 %s 到 %s 失败: %w", queueName, exchangeName, err)
		}
		return nil
	})
}

// SetupRankingTopology 声明排序请求的 exchange、队列与绑定
// 配置了死信队列时，被拒绝的请求转入 {exchange}.dlx
func (r *RabbitMQ) SetupRankingTopology() error {
	if err := r.EnsureExchange(r.cfg.RankingExchange, "topic", true); err != nil {
		return err
	}
	var args amqp.Table
	if dlq := r.cfg.RankingDeadLetterQueue; dlq != "" {
		dlx := r.cfg.RankingExchange + ".dlx"
		if err := r.EnsureExchange(dlx, "fanout", true); err != nil {
			return err
		}
		if err := r.EnsureQueue(dlq, true); err != nil {
			return err
		}
		if err := r.BindQueue(dlq, dlx, ""); err != nil {
			return err
		}
		args = amqp.Table{"x-dead-letter-exchange": dlx}
	}
	if err := r.ensureQueue(r.cfg.RankingRequestQueue, true, args); err != nil {
		return err
	}
	return r.BindQueue(r.cfg.RankingRequestQueue, r.cfg.RankingExchange, r.cfg.RankingRequestRoutingKey)
}

// PublishMessage 发布消息到exchange
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}
	return ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		DeliveryMode: deliveryMode,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}

// PublishJSON 发布JSON格式的消息
func (r *RabbitMQ) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	return r.PublishMessage(ctx, exchangeName, routingKey, jsonData, persistent)
}

// StartConsumer 启动消费者，ctx 取消或返回的 stop 被调用时停止
func (r *RabbitMQ) StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler DeliveryHandler) (stop func(), err error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("无法获取RabbitMQ通道: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ch.Close()
		log := r.log.With().Str("queue", queueName).Logger()
		log.Info().Int("prefetch", prefetchCount).Msg("RabbitMQ消费者已启动")
		defer log.Info().Msg("RabbitMQ消费者已停止")

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					log.Warn().Msg("RabbitMQ通道已关闭")
					return
				}
				var ackErr error
				switch handler(ctx, d.Body, d.Redelivered) {
				case Ack:
					ackErr = d.Ack(false)
				case Requeue:
					ackErr = d.Nack(false, true)
				default:
					ackErr = d.Nack(false, false)
				}
				if ackErr != nil {
					log.Error().Err(ackErr).Msg("确认消息失败")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
