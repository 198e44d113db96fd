package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cv-ranker/internal/config"
	"cv-ranker/internal/constants"
	appLogger "cv-ranker/internal/logger"
	"cv-ranker/internal/tracing"
)

var minioTracer = otel.Tracer("cv-ranker/storage/minio")

// 报告对象的格式
const (
	ReportFormatJSON = "json"
	ReportFormatText = "txt"
)

// ReportArchive 排序报告归档接口
type ReportArchive interface {
	PutRankingReport(ctx context.Context, runUUID, format string, data []byte) (string, error)
	GetRankingReport(ctx context.Context, runUUID, format string) ([]byte, error)
}

var _ ReportArchive = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
	log    zerolog.Logger
}

// NewMinIO 创建MinIO客户端并确保报告存储桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.ReportsBucket
	if bucket == "" {
		bucket = "ranking-reports"
	}
	m := &MinIO{
		client: client,
		cfg:    cfg,
		bucket: bucket,
		log:    appLogger.Component("minio"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
		return nil, err
	}
	if cfg.ReportExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, bucket, "expire-ranking-reports", cfg.ReportExpireDays); err != nil {
			m.log.Warn().Err(err).Str("bucket", bucket).Msg("设置生命周期规则失败")
		}
	}

	m.log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", bucket).Msg("MinIO客户端初始化成功")
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.log.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:         ruleID,
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: constants.ReportObjectPrefix},
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, cfg)
}

// ReportObjectKey 报告对象的存储路径: runs/{runUUID}/report.{format}
func ReportObjectKey(runUUID, format string) string {
	return path.Join(constants.ReportObjectPrefix, runUUID, "report."+format)
}

func reportContentType(format string) string {
	if format == ReportFormatJSON {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// PutRankingReport 上传排序报告，返回对象路径
func (m *MinIO) PutRankingReport(ctx context.Context, runUUID, format string, data []byte) (string, error) {
	key := ReportObjectKey(runUUID, format)
	ctx, span := minioTracer.Start(ctx, "MinIO.PutRankingReport", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", m.bucket),
		attribute.String("minio.object", key),
		attribute.Int("minio.size", len(data)),
	)

	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: reportContentType(format),
		UserMetadata: map[string]string{
			"run-uuid": runUUID,
		},
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return "", fmt.Errorf("上传排序报告失败: %w", err)
	}
	return key, nil
}

// GetRankingReport 下载排序报告
func (m *MinIO) GetRankingReport(ctx context.Context, runUUID, format string) ([]byte, error) {
	key := ReportObjectKey(runUUID, format)
	ctx, span := minioTracer.Start(ctx, "MinIO.GetRankingReport", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("minio.object", key))

	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return nil, fmt.Errorf("获取排序报告失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return nil, fmt.Errorf("读取排序报告失败: %w", err)
	}
	return data, nil
}
