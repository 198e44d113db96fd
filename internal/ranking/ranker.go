// Package ranking 对评分结果排序、分档，并提供技能预筛选与文本报告
package ranking

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cv-ranker/internal/scoring"
	"cv-ranker/internal/types"
)

// 默认分档阈值
const (
	DefaultExcellentThreshold = 80.0
	DefaultGoodThreshold      = 60.0
	// DefaultTieBreakMargin 启用平分调整时的分差窗口
	DefaultTieBreakMargin = 2.0
)

// Thresholds 分档阈值：>= Excellent 为 excellent，>= Good 为 good，其余为 fair
type Thresholds struct {
	Excellent float64
	Good      float64
}

// BucketOf 按阈值分档
func (t Thresholds) BucketOf(score float64) types.Bucket {
	switch {
	case score >= t.Excellent:
		return types.BucketExcellent
	case score >= t.Good:
		return types.BucketGood
	}
	return types.BucketFair
}

// Ranker 并行评分后稳定排序
type Ranker struct {
	engine      *scoring.Engine
	workers     int
	thresholds  Thresholds
	baseWeights types.Weights
	tieBreak    float64
	logger      zerolog.Logger
}

// Option Ranker 选项
type Option func(*Ranker)

// WithWorkers 设置并行评分的 worker 数量
func WithWorkers(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithThresholds 设置分档阈值
func WithThresholds(t Thresholds) Option {
	return func(r *Ranker) {
		r.thresholds = t
	}
}

// WithBaseWeights 设置未指定权重项时使用的基础权重
func WithBaseWeights(w types.Weights) Option {
	return func(r *Ranker) {
		r.baseWeights = w
	}
}

// WithTieBreak 启用平分调整：相邻候选人分差不超过 margin 时依次比较经历、技术、项目子分数
func WithTieBreak(margin float64) Option {
	return func(r *Ranker) {
		r.tieBreak = margin
	}
}

// WithLogger 设置日志
func WithLogger(l zerolog.Logger) Option {
	return func(r *Ranker) {
		r.logger = l
	}
}

// NewRanker 创建排序器，engine 为 nil 时使用默认评分引擎
func NewRanker(engine *scoring.Engine, opts ...Option) *Ranker {
	if engine == nil {
		engine = scoring.NewEngine()
	}
	r := &Ranker{
		engine:      engine,
		workers:     runtime.NumCPU(),
		thresholds:  Thresholds{Excellent: DefaultExcellentThreshold, Good: DefaultGoodThreshold},
		baseWeights: types.DefaultWeights(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine 返回评分引擎
func (r *Ranker) Engine() *scoring.Engine {
	return r.engine
}

// ResolveWeights 以排序器的基础权重合并调用方权重
func (r *Ranker) ResolveWeights(w *types.WeightConfig) types.Weights {
	return w.Resolve(r.baseWeights)
}

// RankCandidates 对候选人评分并排序
// 候选人之间互不依赖，每个 worker 写入自己的下标，排序等待全部评分完成；只有 ctx 取消时返回错误
func (r *Ranker) RankCandidates(ctx context.Context, candidates []types.CandidateRecord, job types.JobProfile, weights *types.WeightConfig) (*types.RankedResult, error) {
	start := time.Now()
	w := weights.Resolve(r.baseWeights)
	scores := make([]types.CandidateScore, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range candidates {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i] = r.engine.Score(&candidates[i], job, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := r.Aggregate(scores)
	r.logger.Debug().
		Int("candidates", len(candidates)).
		Int("excellent", result.ExcellentCount).
		Int("good", result.GoodCount).
		Int("fair", result.FairCount).
		Dur("elapsed", time.Since(start)).
		Msg("候选人排序完成")
	return result, nil
}

// Aggregate 按总分降序稳定排序（同分保持输入顺序），填写名次与档位并统计各档人数
func (r *Ranker) Aggregate(scores []types.CandidateScore) *types.RankedResult {
	sorted := make([]types.CandidateScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalScore > sorted[j].TotalScore
	})
	if r.tieBreak > 0 {
		applyTieBreak(sorted, r.tieBreak)
	}

	result := &types.RankedResult{Candidates: sorted}
	for i := range sorted {
		sorted[i].Rank = i + 1
		sorted[i].Bucket = r.thresholds.BucketOf(sorted[i].TotalScore)
		switch sorted[i].Bucket {
		case types.BucketExcellent:
			result.ExcellentCount++
		case types.BucketGood:
			result.GoodCount++
		default:
			result.FairCount++
		}
	}
	return result
}

// applyTieBreak 单趟扫描相邻候选人，分差在 (0, margin] 内且后者经历、技术、项目依次更强时交换
func applyTieBreak(list []types.CandidateScore, margin float64) {
	for i := 0; i+1 < len(list); i++ {
		cur, next := list[i].Scores, list[i+1].Scores
		diff := list[i].TotalScore - list[i+1].TotalScore
		if diff <= 0 || diff > margin {
			continue
		}
		swap := false
		switch {
		case cur.Experience < next.Experience:
			swap = true
		case cur.Experience == next.Experience && cur.TechnicalSkills < next.TechnicalSkills:
			swap = true
		case cur.Experience == next.Experience && cur.TechnicalSkills == next.TechnicalSkills && cur.Projects < next.Projects:
			swap = true
		}
		if swap {
			list[i], list[i+1] = list[i+1], list[i]
		}
	}
}
