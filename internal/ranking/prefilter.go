package ranking

import (
	"cv-ranker/internal/features"
	"cv-ranker/internal/skills"
	"cv-ranker/internal/types"
)

// ExpandTerms 将查询词按技能族与变体组展开为规范键集合
func ExpandTerms(tax *skills.Taxonomy, terms []string) map[string]struct{} {
	if tax == nil {
		tax = skills.DefaultTaxonomy()
	}
	out := make(map[string]struct{})
	for _, term := range terms {
		for _, key := range tax.Expand(term) {
			for _, v := range tax.Variations(key) {
				out[v] = struct{}{}
			}
		}
	}
	return out
}

// Prefilter 只保留技能与展开后查询词有交集的候选人；terms 为空时原样返回
func Prefilter(candidates []types.CandidateRecord, terms []string, tax *skills.Taxonomy) []types.CandidateRecord {
	if tax == nil {
		tax = skills.DefaultTaxonomy()
	}
	wanted := ExpandTerms(tax, terms)
	if len(wanted) == 0 {
		return candidates
	}
	out := make([]types.CandidateRecord, 0, len(candidates))
	for i := range candidates {
		f := features.Extract(&candidates[i], tax)
		for _, key := range f.AllSkills.Keys() {
			if _, ok := wanted[key]; ok {
				out = append(out, candidates[i])
				break
			}
		}
	}
	return out
}
