// Package service 编排一次排序请求：校验、预筛选、缓存、加锁、评分、持久化、归档与事件投递
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"
	guuid "github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cv-ranker/internal/constants"
	appLogger "cv-ranker/internal/logger"
	"cv-ranker/internal/outbox"
	"cv-ranker/internal/ranking"
	"cv-ranker/internal/skills"
	"cv-ranker/internal/storage"
	"cv-ranker/internal/storage/models"
	"cv-ranker/internal/tracing"
	"cv-ranker/internal/types"
)

// Publisher 直接发布消息，未启用 MySQL 发件箱时使用
type Publisher interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
}

// Settings 服务级设置
type Settings struct {
	ResultTTL     time.Duration
	LockTTL       time.Duration
	MaxCandidates int // 0 表示不限制

	Exchange            string
	RequestRoutingKey   string
	CompletedRoutingKey string
}

// RankRequest 一次排序请求
type RankRequest struct {
	Job        types.JobProfile
	Candidates []types.CandidateRecord
	Weights    *types.WeightConfig
	// Filter 预筛选查询词，为空时不过滤
	Filter []string
	// RunUUID 异步请求预先分配的运行 UUID；设置后不读缓存，保证运行记录被写入
	RunUUID string
}

// RankOutcome 排序结果及运行信息
type RankOutcome struct {
	RunUUID         string              `json:"run_uuid"`
	Fingerprint     string              `json:"fingerprint"`
	Cached          bool                `json:"cached"`
	ReportObjectKey string              `json:"report_object_key,omitempty"`
	Result          *types.RankedResult `json:"result"`
}

// SubmitReceipt 异步排序请求的回执
type SubmitReceipt struct {
	RequestID      string `json:"request_id"`
	RunUUID        string `json:"run_uuid"`
	Fingerprint    string `json:"fingerprint"`
	CandidateCount int    `json:"candidate_count"`
}

// RunView 已保存的运行记录
type RunView struct {
	Run    *models.RankingRun  `json:"run"`
	Result *types.RankedResult `json:"result"`
}

// LeaderboardPage 排行榜的一页
type LeaderboardPage struct {
	RunUUID    string                     `json:"run_uuid"`
	Entries    []storage.LeaderboardEntry `json:"entries"`
	Total      int64                      `json:"total"`
	NextCursor int64                      `json:"next_cursor"` // -1 表示没有下一页
}

// Option 服务选项
type Option func(*RankingService)

// RankingService 排序服务，各存储组件均可为 nil
type RankingService struct {
	ranker    *ranking.Ranker
	matcher   *skills.Matcher
	runs      storage.RunStore
	cache     storage.ResultCache
	reports   storage.ReportArchive
	publisher Publisher
	settings  Settings
	now       func() time.Time
	log       zerolog.Logger
	tracer    trace.Tracer
}

// New 创建排序服务，ranker 为 nil 时使用默认排序器
func New(ranker *ranking.Ranker, opts ...Option) *RankingService {
	if ranker == nil {
		ranker = ranking.NewRanker(nil)
	}
	s := &RankingService{
		ranker: ranker,
		settings: Settings{
			ResultTTL: constants.DefaultResultTTL,
			LockTTL:   constants.DefaultLockTTL,
		},
		now:    time.Now,
		log:    appLogger.Component("ranking-service"),
		tracer: otel.Tracer("cv-ranker/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.matcher = ranker.Engine().Matcher()
	return s
}

type prepared struct {
	candidates  []types.CandidateRecord
	weights     types.Weights
	fingerprint string
}

func (s *RankingService) prepare(req RankRequest) (*prepared, error) {
	if max := s.settings.MaxCandidates; max > 0 && len(req.Candidates) > max {
		return nil, newInvalidError(fmt.Sprintf("候选人数量 %d 超过上限 %d", len(req.Candidates), max))
	}
	if req.Job.MinExperienceYears < 0 {
		return nil, newInvalidError("min_experience_years 不能为负数")
	}
	w := s.ranker.ResolveWeights(req.Weights)
	for name, v := range map[string]float64{
		"experience":       w.Experience,
		"technical_skills": w.TechnicalSkills,
		"projects":         w.Projects,
		"education":        w.Education,
		"signal":           w.Signal,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, newInvalidError(fmt.Sprintf("权重 %s 无效: %v", name, v))
		}
	}
	if w.Sum() <= 0 {
		return nil, newInvalidError("权重之和必须大于 0")
	}

	candidates := req.Candidates
	if len(req.Filter) > 0 {
		candidates = ranking.Prefilter(candidates, req.Filter, s.matcher.Taxonomy())
	}
	fp, err := Fingerprint(req.Job, w, candidates)
	if err != nil {
		return nil, newInvalidError(err.Error())
	}
	return &prepared{candidates: candidates, weights: w, fingerprint: fp}, nil
}

// Fingerprint 请求指纹：岗位、解析后的权重与候选人的规范 JSON 的 SHA-256
func Fingerprint(job types.JobProfile, weights types.Weights, candidates []types.CandidateRecord) (string, error) {
	raw, err := json.Marshal(struct {
		Job        types.JobProfile        `json:"job"`
		Weights    types.Weights           `json:"weights"`
		Candidates []types.CandidateRecord `json:"candidates"`
	}{job, weights, candidates})
	if err != nil {
		return "", fmt.Errorf("计算请求指纹失败: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Rank 同步排序
func (s *RankingService) Rank(ctx context.Context, req RankRequest) (out *RankOutcome, err error) {
	ctx, span := s.tracer.Start(ctx, "RankingService.Rank")
	defer func() {
		if err != nil {
			tracing.RecordError(span, err, errorTypeOf(err))
		}
		span.End()
	}()

	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("fingerprint", p.fingerprint).Logger()
	span.SetAttributes(
		attribute.Int("ranking.candidates", len(p.candidates)),
		attribute.Int("ranking.candidates_filtered_out", len(req.Candidates)-len(p.candidates)),
		attribute.String("ranking.fingerprint", p.fingerprint),
	)

	if s.cache != nil && req.RunUUID == "" {
		runUUID, cached, cerr := s.cache.GetCachedRankedResult(ctx, p.fingerprint)
		switch {
		case cerr == nil:
			span.SetAttributes(attribute.Bool("ranking.cached", true))
			log.Debug().Str("run_uuid", runUUID).Msg("命中排序缓存")
			return &RankOutcome{RunUUID: runUUID, Fingerprint: p.fingerprint, Cached: true, Result: cached}, nil
		case !errors.Is(cerr, storage.ErrNotFound):
			log.Warn().Err(cerr).Msg("读取排序缓存失败，继续计算")
		}
	}

	if s.cache != nil {
		lockKey := fmt.Sprintf(constants.KeyRankingLock, p.fingerprint)
		token, lerr := s.cache.AcquireLock(ctx, lockKey, s.settings.LockTTL)
		switch {
		case lerr != nil:
			log.Warn().Err(lerr).Msg("获取排序锁失败，无锁继续")
		case token == "":
			return nil, newError("lock", req.RunUUID, ErrRankingInProgress, p.fingerprint)
		default:
			defer func() {
				if _, rerr := s.cache.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); rerr != nil {
					log.Warn().Err(rerr).Msg("释放排序锁失败")
				}
			}()
		}
	}

	result, err := s.ranker.RankCandidates(ctx, p.candidates, req.Job, req.Weights)
	if err != nil {
		return nil, newError("score", req.RunUUID, ErrScoringFailed, err.Error())
	}

	runUUID := req.RunUUID
	if runUUID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("生成运行UUID失败: %w", err)
		}
		runUUID = id.String()
	}
	span.SetAttributes(attribute.String("ranking.run_uuid", runUUID))

	if err := s.persist(ctx, runUUID, p, req.Job, result); err != nil {
		return nil, err
	}
	out = &RankOutcome{RunUUID: runUUID, Fingerprint: p.fingerprint, Result: result}
	out.ReportObjectKey = s.archive(ctx, runUUID, result)
	if s.runs == nil {
		s.publishCompleted(ctx, runUUID, p.fingerprint, out.ReportObjectKey, result)
	}
	s.cacheResult(ctx, runUUID, p.fingerprint, result)

	ev := log.Info().
		Str("run_uuid", runUUID).
		Int("candidates", len(result.Candidates)).
		Int("excellent", result.ExcellentCount)
	if len(result.Candidates) > 0 {
		top := result.Candidates[0]
		span.SetAttributes(attribute.String("ranking.top_candidate",
			tracing.SafeAttributeValue("candidate_name", top.CandidateName, tracing.DefaultMaxLength)))
		ev = ev.Str("top_candidate", tracing.MaskPII(top.CandidateName)).Float64("top_score", top.TotalScore)
	}
	ev.Msg("排序完成")
	return out, nil
}

func completedMessage(runUUID, fingerprint, reportKey string, result *types.RankedResult, at time.Time) storage.RankingCompletedMessage {
	msg := storage.RankingCompletedMessage{
		RunUUID:         runUUID,
		Fingerprint:     fingerprint,
		CompletedAt:     at,
		CandidateCount:  len(result.Candidates),
		ExcellentCount:  result.ExcellentCount,
		GoodCount:       result.GoodCount,
		FairCount:       result.FairCount,
		ReportObjectKey: reportKey,
	}
	if len(result.Candidates) > 0 {
		top := result.Candidates[0]
		msg.TopCandidateID = top.StableKey()
		msg.TopScore = top.TotalScore
	}
	return msg
}

// persist 运行记录、得分与完成事件在同一事务中写入
func (s *RankingService) persist(ctx context.Context, runUUID string, p *prepared, job types.JobProfile, result *types.RankedResult) error {
	if s.runs == nil {
		return nil
	}
	run, err := models.NewRankingRun(runUUID, p.fingerprint, job, p.weights, result)
	if err != nil {
		return newError("persist", runUUID, ErrPersistFailed, err.Error())
	}
	scores, err := models.ScoreRecordsFromResult(runUUID, result)
	if err != nil {
		return newError("persist", runUUID, ErrPersistFailed, err.Error())
	}
	var events []models.OutboxMessage
	if s.settings.Exchange != "" && s.settings.CompletedRoutingKey != "" {
		event, err := outbox.NewMessage(runUUID, storage.EventRankingCompleted, s.settings.Exchange, s.settings.CompletedRoutingKey,
			completedMessage(runUUID, p.fingerprint, "", result, s.now()))
		if err != nil {
			return newError("persist", runUUID, ErrPersistFailed, err.Error())
		}
		events = append(events, event)
	}
	if err := s.runs.SaveRankingRun(ctx, run, scores, events...); err != nil {
		return newError("persist", runUUID, ErrPersistFailed, err.Error())
	}
	return nil
}

// archive 上传 JSON 与文本报告，失败只记录日志；返回 JSON 报告的对象路径
func (s *RankingService) archive(ctx context.Context, runUUID string, result *types.RankedResult) string {
	if s.reports == nil {
		return ""
	}
	log := s.log.With().Str("run_uuid", runUUID).Logger()

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("序列化排序报告失败")
		return ""
	}
	key, err := s.reports.PutRankingReport(ctx, runUUID, storage.ReportFormatJSON, payload)
	if err != nil {
		log.Warn().Err(err).Msg("归档排序报告失败")
		return ""
	}

	var text bytes.Buffer
	if err := ranking.WriteReport(&text, result); err == nil {
		if _, err := s.reports.PutRankingReport(ctx, runUUID, storage.ReportFormatText, text.Bytes()); err != nil {
			log.Warn().Err(err).Msg("归档文本报告失败")
		}
	}

	if s.runs != nil {
		if err := s.runs.UpdateReportKey(ctx, runUUID, key); err != nil {
			log.Warn().Err(err).Str("object_key", key).Msg("记录报告路径失败")
		}
	}
	return key
}

func (s *RankingService) publishCompleted(ctx context.Context, runUUID, fingerprint, reportKey string, result *types.RankedResult) {
	if s.publisher == nil || s.settings.Exchange == "" || s.settings.CompletedRoutingKey == "" {
		return
	}
	msg := completedMessage(runUUID, fingerprint, reportKey, result, s.now())
	if err := s.publisher.PublishJSON(ctx, s.settings.Exchange, s.settings.CompletedRoutingKey, msg, true); err != nil {
		s.log.Warn().Err(err).Str("run_uuid", runUUID).Msg("发布排序完成事件失败")
	}
}

func (s *RankingService) cacheResult(ctx context.Context, runUUID, fingerprint string, result *types.RankedResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.CacheRankedResult(ctx, fingerprint, runUUID, result, s.settings.ResultTTL); err != nil {
		s.log.Warn().Err(err).Str("run_uuid", runUUID).Msg("缓存排序结果失败")
	}
	if err := s.cache.CacheLeaderboard(ctx, runUUID, result, s.settings.ResultTTL); err != nil {
		s.log.Warn().Err(err).Str("run_uuid", runUUID).Msg("缓存排行榜失败")
	}
}

// Submit 异步排序：启用 MySQL 时写入 PENDING 运行与请求事件，否则直接发布到队列
func (s *RankingService) Submit(ctx context.Context, req RankRequest) (*SubmitReceipt, error) {
	if s.runs == nil && s.publisher == nil {
		return nil, newError("submit", "", ErrBackendUnavailable, "需要 MySQL 或 RabbitMQ")
	}
	if s.settings.Exchange == "" || s.settings.RequestRoutingKey == "" {
		return nil, newError("submit", "", ErrBackendUnavailable, "未配置排序请求的路由")
	}
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成运行UUID失败: %w", err)
	}
	runUUID := id.String()

	msg := storage.RankingRequestMessage{
		RequestID:   guuid.NewString(),
		RunUUID:     runUUID,
		Fingerprint: p.fingerprint,
		SubmittedAt: s.now(),
		Job:         req.Job,
		Weights:     req.Weights,
		Candidates:  p.candidates,
	}

	if s.runs != nil {
		run, err := models.NewRankingRun(runUUID, p.fingerprint, req.Job, p.weights, nil)
		if err != nil {
			return nil, newError("submit", runUUID, ErrPersistFailed, err.Error())
		}
		event, err := outbox.NewMessage(runUUID, storage.EventRankingRequested, s.settings.Exchange, s.settings.RequestRoutingKey, msg)
		if err != nil {
			return nil, newError("submit", runUUID, ErrPersistFailed, err.Error())
		}
		if err := s.runs.SaveRankingRun(ctx, run, nil, event); err != nil {
			return nil, newError("submit", runUUID, ErrPersistFailed, err.Error())
		}
	} else if err := s.publisher.PublishJSON(ctx, s.settings.Exchange, s.settings.RequestRoutingKey, msg, true); err != nil {
		return nil, newError("submit", runUUID, ErrPublishFailed, err.Error())
	}

	s.log.Info().Str("run_uuid", runUUID).Str("request_id", msg.RequestID).Int("candidates", len(p.candidates)).Msg("已受理异步排序请求")
	return &SubmitReceipt{
		RequestID:      msg.RequestID,
		RunUUID:        runUUID,
		Fingerprint:    p.fingerprint,
		CandidateCount: len(p.candidates),
	}, nil
}

// MarkFailed 记录异步运行失败
func (s *RankingService) MarkFailed(ctx context.Context, runUUID string, cause error) {
	if s.runs == nil || runUUID == "" || cause == nil {
		return
	}
	if err := s.runs.MarkRunFailed(ctx, runUUID, tracing.TruncateString(cause.Error(), 1000)); err != nil {
		s.log.Error().Err(err).Str("run_uuid", runUUID).Msg("标记运行失败状态失败")
	}
}

// GetRun 读取已保存的运行
func (s *RankingService) GetRun(ctx context.Context, runUUID string) (*RunView, error) {
	if s.runs == nil {
		return nil, newError("get_run", runUUID, ErrBackendUnavailable, "MySQL 未启用")
	}
	run, records, err := s.runs.GetRankingRun(ctx, runUUID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			return nil, newError("get_run", runUUID, ErrRunNotFound, "")
		}
		return nil, fmt.Errorf("读取排序运行失败: %w", err)
	}
	result, err := models.ResultFromRecords(records)
	if err != nil {
		return nil, err
	}
	return &RunView{Run: run, Result: result}, nil
}

// ListRuns 按创建时间倒序列出运行
func (s *RankingService) ListRuns(ctx context.Context, limit, offset int) ([]models.RankingRun, error) {
	if s.runs == nil {
		return nil, newError("list_runs", "", ErrBackendUnavailable, "MySQL 未启用")
	}
	return s.runs.ListRankingRuns(ctx, limit, offset)
}

// Leaderboard 分页读取排行榜，Redis 中没有时回退到 MySQL
func (s *RankingService) Leaderboard(ctx context.Context, runUUID string, cursor, limit int64) (*LeaderboardPage, error) {
	if cursor < 0 {
		cursor = 0
	}
	switch {
	case limit <= 0:
		limit = constants.DefaultLeaderboardPageSize
	case limit > constants.MaxLeaderboardPageSize:
		limit = constants.MaxLeaderboardPageSize
	}

	if s.cache != nil {
		entries, total, err := s.cache.GetLeaderboardPage(ctx, runUUID, cursor, limit)
		if err == nil {
			return newPage(runUUID, entries, total, cursor), nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).Str("run_uuid", runUUID).Msg("读取排行榜缓存失败，回退到数据库")
		}
	}
	if s.runs == nil {
		return nil, newError("leaderboard", runUUID, ErrRunNotFound, "")
	}

	view, err := s.GetRun(ctx, runUUID)
	if err != nil {
		return nil, err
	}
	total := int64(len(view.Result.Candidates))
	var entries []storage.LeaderboardEntry
	for i := cursor; i < total && i < cursor+limit; i++ {
		c := view.Result.Candidates[i]
		entries = append(entries, storage.LeaderboardEntry{
			Rank:          c.Rank,
			CandidateID:   c.StableKey(),
			CandidateName: c.CandidateName,
			TotalScore:    c.TotalScore,
			Bucket:        c.Bucket,
		})
	}
	return newPage(runUUID, entries, total, cursor), nil
}

func newPage(runUUID string, entries []storage.LeaderboardEntry, total, cursor int64) *LeaderboardPage {
	if entries == nil {
		entries = []storage.LeaderboardEntry{}
	}
	next := cursor + int64(len(entries))
	if len(entries) == 0 || next >= total {
		next = -1
	}
	return &LeaderboardPage{RunUUID: runUUID, Entries: entries, Total: total, NextCursor: next}
}

// Report 读取归档的排序报告
func (s *RankingService) Report(ctx context.Context, runUUID, format string) ([]byte, error) {
	if s.reports == nil {
		return nil, newError("report", runUUID, ErrBackendUnavailable, "MinIO 未启用")
	}
	data, err := s.reports.GetRankingReport(ctx, runUUID, format)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newError("report", runUUID, ErrRunNotFound, "报告不存在")
	}
	return data, err
}

// ResolveWeights 合并调用方权重与配置的基础权重
func (s *RankingService) ResolveWeights(w *types.WeightConfig) types.Weights {
	return s.ranker.ResolveWeights(w)
}

// Match 对每个要求技能给出最佳匹配
func (s *RankingService) Match(required, candidates []string) []skills.MatchResult {
	return s.matcher.MatchAll(required, candidates)
}

// Expand 把查询词展开为技能族与变体中的全部规范键，按字典序返回
func (s *RankingService) Expand(term string) []string {
	set := ranking.ExpandTerms(s.matcher.Taxonomy(), []string{term})
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func errorTypeOf(err error) tracing.ErrorType {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return tracing.ErrorTypeValidation
	case errors.Is(err, ErrPersistFailed):
		return tracing.ErrorTypeDB
	case errors.Is(err, ErrPublishFailed):
		return tracing.ErrorTypeRabbitMQ
	case errors.Is(err, ErrScoringFailed):
		return tracing.ErrorTypeScoring
	}
	return tracing.ErrorTypeInternal
}
