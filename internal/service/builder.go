package service

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cv-ranker/internal/config"
	"cv-ranker/internal/constants"
	"cv-ranker/internal/ranking"
	"cv-ranker/internal/scoring"
	"cv-ranker/internal/skills"
	"cv-ranker/internal/storage"
	"cv-ranker/internal/types"
)

// NewRankerFromConfig 按 scoring 配置组装匹配器、评分引擎与排序器
func NewRankerFromConfig(cfg config.ScoringConfig, log zerolog.Logger) *ranking.Ranker {
	var mopts []skills.MatcherOption
	if cfg.CosineThreshold > 0 {
		mopts = append(mopts, skills.WithCosineThreshold(cfg.CosineThreshold))
	}
	if cfg.SubstringSimilarity > 0 {
		mopts = append(mopts, skills.WithSubstringSimilarity(cfg.SubstringSimilarity))
	}
	mopts = append(mopts, skills.WithUnknownCosine(cfg.UnknownCosine))
	matcher := skills.NewMatcher(skills.DefaultTaxonomy(), mopts...)

	params := scoring.DefaultParams()
	if cfg.ReferenceYear > 0 {
		params.ReferenceYear = cfg.ReferenceYear
	}
	if len(cfg.Certifications) > 0 {
		certs := make([]string, 0, len(cfg.Certifications))
		for _, c := range cfg.Certifications {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				certs = append(certs, c)
			}
		}
		params.RecognizedCertifications = certs
	}
	engine := scoring.NewEngine(scoring.WithParams(params), scoring.WithMatcher(matcher))

	ropts := []ranking.Option{
		ranking.WithWorkers(cfg.Workers),
		ranking.WithBaseWeights(cfg.Weights.Resolve(types.DefaultWeights())),
		ranking.WithLogger(log),
	}
	if cfg.ExcellentThreshold > 0 && cfg.GoodThreshold > 0 {
		ropts = append(ropts, ranking.WithThresholds(ranking.Thresholds{
			Excellent: cfg.ExcellentThreshold,
			Good:      cfg.GoodThreshold,
		}))
	}
	if cfg.TieBreakMargin > 0 {
		ropts = append(ropts, ranking.WithTieBreak(cfg.TieBreakMargin))
	}
	return ranking.NewRanker(engine, ropts...)
}

// SettingsFromConfig 从全局配置提取服务设置
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ResultTTL:           config.GetDuration(cfg.Redis.ResultTTL, constants.DefaultResultTTL),
		LockTTL:             config.GetDuration(cfg.Redis.LockTTL, constants.DefaultLockTTL),
		MaxCandidates:       cfg.Server.MaxCandidates,
		Exchange:            cfg.RabbitMQ.RankingExchange,
		RequestRoutingKey:   cfg.RabbitMQ.RankingRequestRoutingKey,
		CompletedRoutingKey: cfg.RabbitMQ.RankingCompletedRoutingKey,
	}
}

// WithStorage 挂载存储管理器中已启用的组件
func WithStorage(s *storage.Storage) Option {
	return func(svc *RankingService) {
		if s == nil {
			return
		}
		if s.MySQL != nil {
			svc.runs = s.MySQL
		}
		if s.Redis != nil {
			svc.cache = s.Redis
		}
		if s.MinIO != nil {
			svc.reports = s.MinIO
		}
		if s.RabbitMQ != nil {
			svc.publisher = s.RabbitMQ
		}
	}
}

// WithRunStore 设置运行记录存储
func WithRunStore(r storage.RunStore) Option {
	return func(svc *RankingService) { svc.runs = r }
}

// WithResultCache 设置结果缓存
func WithResultCache(c storage.ResultCache) Option {
	return func(svc *RankingService) { svc.cache = c }
}

// WithReportArchive 设置报告归档
func WithReportArchive(a storage.ReportArchive) Option {
	return func(svc *RankingService) { svc.reports = a }
}

// WithPublisher 设置消息发布器
func WithPublisher(p Publisher) Option {
	return func(svc *RankingService) { svc.publisher = p }
}

// WithSettings 设置缓存时长、路由键等
func WithSettings(s Settings) Option {
	return func(svc *RankingService) { svc.settings = s }
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(svc *RankingService) {
		if now != nil {
			svc.now = now
		}
	}
}
