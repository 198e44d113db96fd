package skills

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tax := DefaultTaxonomy()
	cases := []struct {
		raw  string
		want string
	}{
		{"React.js", "reactjs"},
		{"  C++ ", "cpp"},
		{"C ++", "cpp"},
		{"C plus plus", "cpp"},
		{"CPlusPlus", "cpp"},
		{"C/C++", "cpp"},
		{"C#", "csharp"},
		{".NET", "dotnet"},
		{"Node.js", "nodejs"},
		{"Golang", "go"},
		{"Amazon Web Services", "aws"},
		{"amazon-web-services", "aws"},
		{"K8s", "kubernetes"},
		{"Spring Boot", "springboot"},
		{"Python3", "python"},
		{"école", "école"},
		{"", ""},
		{"   ", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tax.Normalize(tc.raw), "Normalize(%q)", tc.raw)
	}
}

// 归一化必须幂等
func TestNormalizeIdempotent(t *testing.T) {
	tax := DefaultTaxonomy()
	inputs := []string{"React.js", "C++", "c", "Node.JS", "Vue 3", "machine learning", "ci/cd", "F#", "unknown-lang_42"}
	for alias, target := range tax.Aliases() {
		inputs = append(inputs, alias, target)
	}
	for _, s := range inputs {
		once := tax.Normalize(s)
		assert.Equal(t, once, tax.Normalize(once), "normalize 不幂等: %q", s)
	}
}

func TestAliasTargetsAreCanonical(t *testing.T) {
	tax := DefaultTaxonomy()
	for alias, target := range tax.Aliases() {
		assert.Equal(t, target, tax.Normalize(target), "别名 %q 的目标 %q 不是规范键", alias, target)
	}
}

func TestVariationSymmetry(t *testing.T) {
	tax := DefaultTaxonomy()
	m := NewMatcher(tax)
	for _, group := range tax.groups {
		for _, a := range group {
			for _, b := range group {
				if a == b {
					continue
				}
				assert.Equal(t, TierVariation, m.Match(a, []string{b}).Tier, "%s -> %s", a, b)
				assert.Equal(t, TierVariation, m.Match(b, []string{a}).Tier, "%s -> %s", b, a)
			}
		}
	}
}

func TestDenylistEnforcement(t *testing.T) {
	m := NewMatcher(nil)

	cases := []struct {
		required  string
		candidate string
		want      MatchTier
	}{
		{"java", "javascript", TierNone},
		{"javascript", "java", TierNone},
		{"html", "ml", TierNone},
		{"sql", "nosql", TierNone},
		{"c", "c++", TierNone},
		{"c", "C ++", TierNone},
		{"c", "c/c++", TierNone},
		{"rust", "trust", TierNone},
		{"react", "reactnative", TierSimilar},
		{"golang", "go", TierExact},
	}
	for _, tc := range cases {
		got := m.Match(tc.required, []string{tc.candidate})
		assert.Equal(t, tc.want, got.Tier, "%s vs %s", tc.required, tc.candidate)
		if tc.want == TierNone {
			assert.Zero(t, got.Similarity)
			assert.Empty(t, got.Matched)
		}
	}
}

func TestMatchTierPrecedence(t *testing.T) {
	m := NewMatcher(nil)

	got := m.Match("JavaScript", []string{"ecmascript", "javascript"})
	assert.Equal(t, TierExact, got.Tier)
	assert.Equal(t, "javascript", got.Matched)
	assert.Equal(t, 1.0, got.Similarity)

	got = m.Match("js", []string{"react", "JavaScript"})
	assert.Equal(t, TierVariation, got.Tier)
	assert.Equal(t, 0.95, got.Similarity)

	got = m.Match("react", []string{"React Native"})
	assert.Equal(t, TierSimilar, got.Tier)
	assert.InDelta(t, 0.84, got.Similarity, 0.01)
}

func TestGuardedSubstring(t *testing.T) {
	m := NewMatcher(nil)

	got := m.Match("postgre", []string{"PostgreSQL"})
	assert.Equal(t, TierSimilar, got.Tier)
	assert.Equal(t, DefaultSubstringSimilarity, got.Similarity)

	// 长度差超过 3
	assert.Equal(t, TierNone, m.Match("type", []string{"typewriter"}).Tier)
	// 短于 4 个字符
	assert.Equal(t, TierNone, m.Match("abc", []string{"abcd"}).Tier)
	// 只在中间出现，不是前后缀
	assert.Equal(t, TierNone, m.Match("ongo", []string{"mongos"}).Tier)
}

func TestCosineThresholdOption(t *testing.T) {
	strict := NewMatcher(nil, WithCosineThreshold(0.9))
	assert.Equal(t, TierNone, strict.Match("react", []string{"reactnative"}).Tier)

	loose := NewMatcher(nil, WithCosineThreshold(0.7))
	assert.Equal(t, TierSimilar, loose.Match("aws", []string{"azure"}).Tier)

	def := NewMatcher(nil)
	assert.Equal(t, TierNone, def.Match("aws", []string{"azure"}).Tier)
	assert.Equal(t, TierNone, def.Match("javascript", []string{"react"}).Tier)
}

func TestUnknownCosineOption(t *testing.T) {
	// 找两个哈希下标相同、长度相同的未知技能
	seen := map[int]string{}
	var a, b string
	for i := 0; i < 1000 && b == ""; i++ {
		key := fmt.Sprintf("x%04d", i)
		idx := HashIndex(key, EmbeddingDim)
		if prev, ok := seen[idx]; ok {
			a, b = prev, key
		}
		seen[idx] = key
	}
	require.NotEmpty(t, b)

	assert.Equal(t, TierNone, NewMatcher(nil).Match(a, []string{b}).Tier)

	got := NewMatcher(nil, WithUnknownCosine(true)).Match(a, []string{b})
	assert.Equal(t, TierSimilar, got.Tier)
	assert.InDelta(t, 1.0, got.Similarity, 1e-9)
}

func TestMatchPoolsProvenance(t *testing.T) {
	m := NewMatcher(nil)
	got := m.MatchPools("aws",
		SkillPool{Source: "skills", Skills: []string{"java"}},
		SkillPool{Source: "project", Skills: []string{"AWS"}},
	)
	assert.Equal(t, TierExact, got.Tier)
	assert.Equal(t, "found in: project", got.Source)
}

func TestMatchAll(t *testing.T) {
	m := NewMatcher(nil)
	results := m.MatchAll([]string{"Python", "AWS", "Kotlin"}, []string{"python", "django", "aws"})
	require.Len(t, results, 3)
	assert.Equal(t, TierExact, results[0].Tier)
	assert.Equal(t, TierExact, results[1].Tier)
	assert.Equal(t, TierNone, results[2].Tier)
	assert.Equal(t, 2, m.CountMatched([]string{"Python", "AWS", "Kotlin"}, []string{"python", "django", "aws"}))

	assert.Equal(t, TierNone, m.Match("python", nil).Tier)
	assert.Equal(t, TierNone, m.Match("", []string{"python"}).Tier)
}

func TestCosineSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float64{1}))
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-3, 0}), 1e-9)
	// 短向量补零
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1}, []float64{1, 0, 0}), 1e-9)

	vectors := [][]float64{{1, -2, 3}, {-0.5, 0.25}, {7, 7, 7, 7}, {1e-9, 0, 1e9}}
	for _, a := range vectors {
		for _, b := range vectors {
			sim := CosineSimilarity(a, b)
			assert.True(t, sim >= -1 && sim <= 1, "cosine 越界: %v", sim)
		}
	}
}

func TestHashEmbeddingDeterministic(t *testing.T) {
	assert.Equal(t, 5, HashIndex("foo", EmbeddingDim))
	assert.Equal(t, 74, HashIndex("foo", TextEmbeddingDim))
	assert.Equal(t, 10, HashIndex("python", EmbeddingDim))

	tax := DefaultTaxonomy()
	vec := tax.Embed("ZZQX-lang")
	require.Len(t, vec, EmbeddingDim)
	assert.Equal(t, 1.0, vec[12])
	sum := 0.0
	for _, v := range vec {
		sum += v
	}
	assert.Equal(t, 1.0, sum)
	assert.Equal(t, vec, tax.Embed("zzqxlang"))

	text := tax.EmbedText("zzqxlang", TextEmbeddingDim)
	require.Len(t, text, TextEmbeddingDim)
	assert.Equal(t, 1.0, text[93])
}

func TestEmbedReturnsCopy(t *testing.T) {
	tax := DefaultTaxonomy()
	vec := tax.Embed("python")
	vec[0] = 42
	assert.NotEqual(t, 42.0, tax.Embed("python")[0])
}

func TestUnknownSkillNeverFuzzyMatches(t *testing.T) {
	m := NewMatcher(nil)
	known := []string{"python", "aws", "react", "css", "docker", "sql"}
	got := m.Match("zzqxlang", known)
	assert.Equal(t, TierNone, got.Tier)
	assert.False(t, math.IsNaN(got.Similarity))
}

func TestExpand(t *testing.T) {
	tax := DefaultTaxonomy()
	assert.Equal(t, []string{"cloud", "aws", "azure", "gcp"}, tax.Expand("Cloud"))
	assert.Equal(t, []string{"aws"}, tax.Expand("Amazon Web Services"))
	assert.Nil(t, tax.Expand("  "))

	assert.ElementsMatch(t, []string{"backend", "datascience"}, tax.FamiliesOf("python"))
	assert.True(t, tax.InFamily("react", "frontend"))
	assert.False(t, tax.InFamily("react", "backend"))
	assert.ElementsMatch(t, []string{"javascript", "js", "ecmascript", "es6"}, tax.Variations("js"))
	assert.Equal(t, []string{"cobol"}, tax.Variations("cobol"))
}
