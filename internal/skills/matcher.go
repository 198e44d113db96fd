package skills

import "strings"

// MatchTier 匹配层级，按严格优先级排列
type MatchTier string

const (
	TierExact     MatchTier = "exact"
	TierVariation MatchTier = "variation"
	TierSimilar   MatchTier = "similar"
	TierNone      MatchTier = "none"
)

// 默认匹配参数
const (
	DefaultCosineThreshold     = 0.8
	DefaultSubstringSimilarity = 0.75
	DefaultMinSubstringLen     = 4
	DefaultMaxLengthDiff       = 3

	exactSimilarity     = 1.0
	variationSimilarity = 0.95
)

// MatchResult 单个必需技能对候选技能集的匹配结果
type MatchResult struct {
	Required   string    `json:"required"`
	Matched    string    `json:"matched,omitempty"`
	Tier       MatchTier `json:"tier"`
	Similarity float64   `json:"similarity"`
	Source     string    `json:"source,omitempty"`
}

// IsMatch 是否命中任一层级
func (r MatchResult) IsMatch() bool {
	return r.Tier != TierNone && r.Tier != ""
}

// SkillPool 带来源标签的候选技能集合，例如 "skills"、"experience"、"project"
type SkillPool struct {
	Source string
	Skills []string
}

// Matcher 分级技能匹配器：exact → variation → cosine → 受限子串，子串与余弦层均受黑名单约束
type Matcher struct {
	tax                 *Taxonomy
	cosineThreshold     float64
	substringSimilarity float64
	minSubstringLen     int
	maxLengthDiff       int
	unknownCosine       bool
}

// MatcherOption 匹配器选项
type MatcherOption func(*Matcher)

// WithCosineThreshold 设置余弦层的接受阈值
func WithCosineThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		if threshold > 0 && threshold <= 1 {
			m.cosineThreshold = threshold
		}
	}
}

// WithSubstringSimilarity 设置子串层返回的相似度
func WithSubstringSimilarity(sim float64) MatcherOption {
	return func(m *Matcher) {
		if sim > 0 && sim <= 1 {
			m.substringSimilarity = sim
		}
	}
}

// WithSubstringGuards 设置子串层的最小长度与最大长度差
func WithSubstringGuards(minLen, maxDiff int) MatcherOption {
	return func(m *Matcher) {
		if minLen > 0 {
			m.minSubstringLen = minLen
		}
		if maxDiff >= 0 {
			m.maxLengthDiff = maxDiff
		}
	}
}

// WithUnknownCosine 允许对哈希派生向量进行余弦比较（默认关闭，one-hot 碰撞没有语义）
func WithUnknownCosine(enabled bool) MatcherOption {
	return func(m *Matcher) {
		m.unknownCosine = enabled
	}
}

// NewMatcher 创建匹配器，tax 为 nil 时使用内置技能表
// 默认只在双方都有静态向量时计算余弦层，任一方只有哈希向量时跳过该层；
// 需要对哈希向量也做余弦比较时传入 WithUnknownCosine(true)
func NewMatcher(tax *Taxonomy, opts ...MatcherOption) *Matcher {
	if tax == nil {
		tax = DefaultTaxonomy()
	}
	m := &Matcher{
		tax:                 tax,
		cosineThreshold:     DefaultCosineThreshold,
		substringSimilarity: DefaultSubstringSimilarity,
		minSubstringLen:     DefaultMinSubstringLen,
		maxLengthDiff:       DefaultMaxLengthDiff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Taxonomy 返回匹配器使用的技能表
func (m *Matcher) Taxonomy() *Taxonomy {
	return m.tax
}

// CosineThreshold 当前余弦阈值
func (m *Matcher) CosineThreshold() float64 {
	return m.cosineThreshold
}

type candidate struct {
	raw    string
	key    string
	source string
}

// Match 对单个必需技能在候选集合中执行分级匹配，首个命中的层级胜出
func (m *Matcher) Match(required string, candidates []string) MatchResult {
	return m.MatchPools(required, SkillPool{Skills: candidates})
}

// MatchPools 与 Match 相同，但候选来自多个带标签的集合，命中时记录来源
func (m *Matcher) MatchPools(required string, pools ...SkillPool) MatchResult {
	result := MatchResult{Required: required, Tier: TierNone}
	reqKey := m.tax.Normalize(required)
	if reqKey == "" {
		return result
	}

	var cands []candidate
	for _, pool := range pools {
		for _, raw := range pool.Skills {
			key := m.tax.Normalize(raw)
			if key == "" {
				continue
			}
			cands = append(cands, candidate{raw: raw, key: key, source: pool.Source})
		}
	}
	if len(cands) == 0 {
		return result
	}

	hit := func(c candidate, tier MatchTier, sim float64) MatchResult {
		r := MatchResult{Required: required, Matched: c.raw, Tier: tier, Similarity: sim}
		if c.source != "" {
			r.Source = "found in: " + c.source
		}
		return r
	}

	for _, c := range cands {
		if c.key == reqKey {
			return hit(c, TierExact, exactSimilarity)
		}
	}
	for _, c := range cands {
		if m.tax.SameVariation(reqKey, c.key) {
			return hit(c, TierVariation, variationSimilarity)
		}
	}

	best, bestSim := -1, 0.0
	for i, c := range cands {
		sim, ok := m.cosine(reqKey, c.key)
		if ok && sim >= m.cosineThreshold && sim > bestSim {
			best, bestSim = i, sim
		}
	}
	if best >= 0 {
		return hit(cands[best], TierSimilar, bestSim)
	}

	for _, c := range cands {
		if m.substringMatch(reqKey, c.key) {
			return hit(c, TierSimilar, m.substringSimilarity)
		}
	}
	return result
}

// MatchAll 对每个必需技能执行 Match，结果顺序与 required 一致
func (m *Matcher) MatchAll(required, candidates []string) []MatchResult {
	results := make([]MatchResult, 0, len(required))
	for _, req := range required {
		results = append(results, m.Match(req, candidates))
	}
	return results
}

// CountMatched 统计命中的必需技能数量
func (m *Matcher) CountMatched(required, candidates []string) int {
	n := 0
	for _, req := range required {
		if m.Match(req, candidates).IsMatch() {
			n++
		}
	}
	return n
}

// MatchesAny 判断技能是否与集合中任一技能匹配
func (m *Matcher) MatchesAny(skill string, pool []string) bool {
	return m.Match(skill, pool).IsMatch()
}

func (m *Matcher) cosine(a, b string) (float64, bool) {
	if m.tax.IsDenied(a, b) {
		return 0, false
	}
	va, okA := m.tax.embeddings[a]
	vb, okB := m.tax.embeddings[b]
	if !okA || !okB {
		if !m.unknownCosine {
			return 0, false
		}
		if !okA {
			va = HashEmbedding(a, EmbeddingDim)
		}
		if !okB {
			vb = HashEmbedding(b, EmbeddingDim)
		}
	}
	return CosineSimilarity(va, vb), true
}

func (m *Matcher) substringMatch(a, b string) bool {
	la, lb := len([]rune(a)), len([]rune(b))
	if la < m.minSubstringLen || lb < m.minSubstringLen {
		return false
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if diff > m.maxLengthDiff {
		return false
	}
	short, long := a, b
	if la > lb {
		short, long = b, a
	}
	if !strings.HasPrefix(long, short) && !strings.HasSuffix(long, short) {
		return false
	}
	return !m.tax.IsDenied(a, b)
}
