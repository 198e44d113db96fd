package storage

import (
	"context"
	"fmt"
	"strings"

	"cv-ranker/internal/config"
	appLogger "cv-ranker/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖，未启用或初始化失败的组件为 nil
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 按配置初始化各存储组件
// 单个组件失败只记录警告；全部启用的组件都失败时返回错误
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	log := appLogger.Component("storage")

	s := &Storage{}
	var (
		err        error
		enabled    int
		initErrors []string
	)

	if cfg.MinIO.Enabled {
		enabled++
		if s.MinIO, err = NewMinIO(&cfg.MinIO); err != nil {
			s.MinIO = nil
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	if cfg.RabbitMQ.Enabled {
		enabled++
		if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ); err != nil {
			s.RabbitMQ = nil
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else if err = s.RabbitMQ.SetupRankingTopology(); err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ topology: %v", err))
		}
	}

	if cfg.MySQL.Enabled {
		enabled++
		if s.MySQL, err = NewMySQL(&cfg.MySQL); err != nil {
			s.MySQL = nil
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	if cfg.Redis.Enabled {
		enabled++
		if s.Redis, err = NewRedis(&cfg.Redis); err != nil {
			s.Redis = nil
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	}

	if enabled > 0 && s.MinIO == nil && s.RabbitMQ == nil && s.MySQL == nil && s.Redis == nil {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}
	if len(initErrors) > 0 {
		log.Warn().Strs("errors", initErrors).Msg("部分存储组件初始化失败，相关功能将降级")
	}
	log.Info().
		Bool("mysql", s.MySQL != nil).
		Bool("redis", s.Redis != nil).
		Bool("rabbitmq", s.RabbitMQ != nil).
		Bool("minio", s.MinIO != nil).
		Msg("存储组件初始化完成")
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := appLogger.Component("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}

// Health 各组件的连通性，未启用的组件不出现在结果中
func (s *Storage) Health(ctx context.Context) map[string]string {
	status := make(map[string]string)
	check := func(name string, err error) {
		if err != nil {
			status[name] = "down: " + err.Error()
			return
		}
		status[name] = "up"
	}
	if s.MySQL != nil {
		check("mysql", s.MySQL.Ping(ctx))
	}
	if s.Redis != nil {
		check("redis", s.Redis.Ping(ctx))
	}
	if s.RabbitMQ != nil {
		var err error
		if s.RabbitMQ.IsClosed() {
			err = fmt.Errorf("connection closed")
		}
		check("rabbitmq", err)
	}
	if s.MinIO != nil {
		_, err := s.MinIO.client.BucketExists(ctx, s.MinIO.bucket)
		check("minio", err)
	}
	return status
}
