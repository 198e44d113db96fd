package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"cv-ranker/internal/config"
	appLogger "cv-ranker/internal/logger"
	"cv-ranker/internal/storage/models"
	"cv-ranker/internal/tracing"
)

var mysqlTracer = otel.Tracer("cv-ranker/storage/mysql")

// ErrRunNotFound 排序运行记录不存在
var ErrRunNotFound = errors.New("排序运行不存在")

// scoreInsertBatchSize 候选人得分分批写入的大小
const scoreInsertBatchSize = 200

type gormSpanKey struct{}

// GormTracingPlugin 为 GORM 操作创建 OpenTelemetry span
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册 GORM 回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		op       string
		register func(before, after func(*gorm.DB)) error
	}{
		{"CREATE", func(b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("otel:before_create", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("otel:after_create", a)
		}},
		{"SELECT", func(b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("otel:before_query", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("otel:after_query", a)
		}},
		{"UPDATE", func(b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("otel:before_update", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("otel:after_update", a)
		}},
		{"DELETE", func(b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("otel:after_delete", a)
		}},
		{"RAW", func(b, a func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", b); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("otel:after_raw", a)
		}},
	}
	for _, h := range hooks {
		if err := h.register(p.before(h.op), p.after()); err != nil {
			return fmt.Errorf("注册 %s 追踪回调失败: %w", h.op, err)
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		attrs := []attribute.KeyValue{
			semconv.DBSystemMySQL,
			attribute.String("db.name", p.dbName),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", tableName),
		}
		if sql := db.Statement.SQL.String(); sql != "" {
			attrs = append(attrs, attribute.String("db.statement", tracing.SafeSQL(sql)))
		}
		newCtx, span := p.tracer.Start(ctx, operation+" "+tableName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...))
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 查无记录属于正常业务分支
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// NewGormTracingPlugin 创建 GORM 追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// RunStore 排序运行的持久化接口
type RunStore interface {
	SaveRankingRun(ctx context.Context, run *models.RankingRun, scores []models.CandidateScoreRecord, events ...models.OutboxMessage) error
	MarkRunFailed(ctx context.Context, runUUID, reason string) error
	UpdateReportKey(ctx context.Context, runUUID, objectKey string) error
	GetRankingRun(ctx context.Context, runUUID string) (*models.RankingRun, []models.CandidateScoreRecord, error)
	ListRankingRuns(ctx context.Context, limit, offset int) ([]models.RankingRun, error)
}

var _ RunStore = (*MySQL)(nil)

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	appLogger.Info().Str("database", cfg.Database).Msg("成功连接到MySQL并完成表结构迁移")
	return m, nil
}

// gormLogLevel 1-4 对应 Silent/Error/Warn/Info
func gormLogLevel(level int) logger.LogLevel {
	switch level {
	case 1:
		return logger.Silent
	case 2:
		return logger.Error
	case 3:
		return logger.Warn
	}
	return logger.Info
}

func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	if err := silentDB.AutoMigrate(
		&models.RankingRun{},
		&models.CandidateScoreRecord{},
		&models.OutboxMessage{},
	); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// Ping 检查数据库连通性
func (m *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveRankingRun 在一个事务中写入运行记录、全部得分与发件箱消息
// 同一 run_uuid 重复写入时覆盖运行记录并替换得分
func (m *MySQL) SaveRankingRun(ctx context.Context, run *models.RankingRun, scores []models.CandidateScoreRecord, events ...models.OutboxMessage) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.SaveRankingRun", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("ranking.run_uuid", run.RunUUID),
		attribute.String("ranking.status", run.Status),
		attribute.Int("batch.size", len(scores)),
		attribute.Int("outbox.events", len(events)),
	)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "candidate_count", "excellent_count", "good_count", "fair_count",
				"report_object_key", "error_message", "completed_at",
			}),
		}).Create(run).Error; err != nil {
			return fmt.Errorf("写入排序运行失败: %w", err)
		}

		if len(scores) > 0 {
			if err := tx.Where("run_uuid = ?", run.RunUUID).Delete(&models.CandidateScoreRecord{}).Error; err != nil {
				return fmt.Errorf("清理旧得分失败: %w", err)
			}
			if err := tx.CreateInBatches(scores, scoreInsertBatchSize).Error; err != nil {
				return fmt.Errorf("写入候选人得分失败: %w", err)
			}
		}

		if len(events) > 0 {
			if err := tx.Create(&events).Error; err != nil {
				return fmt.Errorf("写入发件箱消息失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// MarkRunFailed 标记运行失败
func (m *MySQL) MarkRunFailed(ctx context.Context, runUUID, reason string) error {
	now := time.Now()
	return m.db.WithContext(ctx).Model(&models.RankingRun{}).
		Where("run_uuid = ?", runUUID).
		Updates(map[string]interface{}{
			"status":        models.RunStatusFailed,
			"error_message": reason,
			"completed_at":  &now,
		}).Error
}

// UpdateReportKey 记录排序报告在对象存储中的位置
func (m *MySQL) UpdateReportKey(ctx context.Context, runUUID, objectKey string) error {
	return m.db.WithContext(ctx).Model(&models.RankingRun{}).
		Where("run_uuid = ?", runUUID).
		Update("report_object_key", objectKey).Error
}

// GetRankingRun 读取运行记录及按名次排列的得分
func (m *MySQL) GetRankingRun(ctx context.Context, runUUID string) (*models.RankingRun, []models.CandidateScoreRecord, error) {
	db := m.db.WithContext(ctx)

	var run models.RankingRun
	if err := db.Where("run_uuid = ?", runUUID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, runUUID)
		}
		return nil, nil, fmt.Errorf("查询排序运行失败: %w", err)
	}

	var scores []models.CandidateScoreRecord
	if err := db.Where("run_uuid = ?", runUUID).Order("`rank` asc").Find(&scores).Error; err != nil {
		return nil, nil, fmt.Errorf("查询候选人得分失败: %w", err)
	}
	return &run, scores, nil
}

// ListRankingRuns 按创建时间倒序分页列出运行记录
func (m *MySQL) ListRankingRuns(ctx context.Context, limit, offset int) ([]models.RankingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.RankingRun
	err := m.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("列出排序运行失败: %w", err)
	}
	return runs, nil
}
