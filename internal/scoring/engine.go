package scoring

import (
	"strings"

	"cv-ranker/internal/features"
	"cv-ranker/internal/skills"
	"cv-ranker/internal/types"
)

// Engine 多因子评分引擎，无共享可变状态，可被多个 goroutine 并发使用
type Engine struct {
	matcher *skills.Matcher
	params  Params
}

// Option 引擎选项
type Option func(*Engine)

// WithParams 覆盖评分常量
func WithParams(p Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}

// WithMatcher 指定技能匹配器
func WithMatcher(m *skills.Matcher) Option {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

// NewEngine 创建评分引擎
func NewEngine(opts ...Option) *Engine {
	e := &Engine{params: DefaultParams()}
	for _, opt := range opts {
		opt(e)
	}
	if e.matcher == nil {
		e.matcher = skills.NewMatcher(nil)
	}
	return e
}

// Params 返回当前评分常量
func (e *Engine) Params() Params {
	return e.params
}

// Matcher 返回技能匹配器
func (e *Engine) Matcher() *skills.Matcher {
	return e.matcher
}

type scoreContext struct {
	rec      *types.CandidateRecord
	job      types.JobProfile
	required []string
	features features.Features
	details  types.ScoreDetails
	matches  []skills.MatchResult
}

// Score 计算单个候选人的五项子分数与加权总分（Rank 与 Bucket 由排序阶段填写）
func (e *Engine) Score(rec *types.CandidateRecord, job types.JobProfile, weights types.Weights) types.CandidateScore {
	required := make([]string, 0, len(job.RequiredSkills))
	for _, s := range job.RequiredSkills {
		if s = strings.TrimSpace(s); s != "" {
			required = append(required, s)
		}
	}
	sc := &scoreContext{
		rec:      rec,
		job:      job,
		required: required,
		features: features.Extract(rec, e.matcher.Taxonomy()),
	}

	sub := types.SubScores{
		Experience:      Round2(e.scoreExperience(sc)),
		TechnicalSkills: Round2(e.scoreTechnical(sc)),
		Projects:        Round2(e.scoreProjects(sc)),
		Education:       Round2(e.scoreEducation(sc)),
		Signal:          Round2(e.scoreSignal(sc)),
	}

	return types.CandidateScore{
		CandidateID:   rec.ID,
		CandidateName: sc.features.Name,
		TotalScore:    WeightedTotal(sub, weights),
		Scores:        sub,
		Explanation:   explain(sub, sc.details, required),
		SkillMatches:  sc.matches,
		Details:       sc.details,
	}
}

// WeightedTotal 各子分数按上限归一后乘以权重求和，结果截断到 [0, 100]
func WeightedTotal(sub types.SubScores, w types.Weights) float64 {
	total := sub.Experience/MaxExperience*w.Experience +
		sub.TechnicalSkills/MaxTechnical*w.TechnicalSkills +
		sub.Projects/MaxProjects*w.Projects +
		sub.Education/MaxEducation*w.Education +
		sub.Signal/MaxSignal*w.Signal
	return Round2(clamp(total, 0, 100))
}
