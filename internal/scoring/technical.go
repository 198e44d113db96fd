package scoring

import (
	"math"

	"cv-ranker/internal/skills"
)

// scoreTechnical 技术技能（上限 25）：必需技能匹配率 + 技能深度
func (e *Engine) scoreTechnical(sc *scoreContext) float64 {
	p := &e.params
	f := sc.features
	if len(f.AllSkills) == 0 {
		return 0
	}

	expTechs := f.ExperienceTechs.Originals()
	bonus := 0.0
	if f.HasLanguages && f.HasFrameworks {
		bonus = p.LangFrameworkBonus
	}

	score := 0.0
	if len(sc.required) > 0 {
		pools := []skills.SkillPool{
			{Source: "skills", Skills: f.DeclaredSkills.Originals()},
			{Source: "experience", Skills: expTechs},
			{Source: "project", Skills: f.ProjectTechs.Originals()},
		}
		matched, inExperience := 0, 0
		for _, req := range sc.required {
			r := e.matcher.MatchPools(req, pools...)
			sc.matches = append(sc.matches, r)
			if !r.IsMatch() {
				continue
			}
			matched++
			if e.matcher.MatchesAny(req, expTechs) {
				inExperience++
			}
		}
		sc.details.RequiredMatched = matched
		sc.details.RequiredTotal = len(sc.required)

		var depth float64
		if matched == 0 {
			// 一个都没命中：深度仍按声明技能在经历中的使用情况计，再扣罚分
			depth = math.Min(e.usageDepth(f.DeclaredSkills.Originals(), expTechs)+bonus, p.DepthPoints)
			score -= p.NoMatchPenalty
		} else {
			score += p.CoreMatchPoints * float64(matched) / float64(len(sc.required))
			depth = math.Min(p.DepthPoints*float64(inExperience)/float64(matched)+bonus, p.DepthPoints)
		}
		sc.details.SkillDepth = Round2(depth)
		score += depth
		return clamp(score, 0, MaxTechnical)
	}

	// 无必需技能：按技能数量、覆盖的技能族数量与使用深度给分
	score += math.Min(p.GeneralCap, p.GeneralPerSkill*float64(len(f.AllSkills)))

	families := make(map[string]struct{})
	tax := e.matcher.Taxonomy()
	for _, key := range f.AllSkills.Keys() {
		for _, fam := range tax.FamiliesOf(key) {
			families[fam] = struct{}{}
		}
	}
	score += math.Min(p.BreadthCap, float64(len(families)))

	depth := math.Min(e.usageDepth(f.DeclaredSkills.Originals(), expTechs)+bonus, p.DepthPoints)
	sc.details.SkillDepth = Round2(depth)
	score += depth
	return clamp(score, 0, MaxTechnical)
}

// usageDepth 声明技能中在工作经历里出现过的比例，折算为深度分
func (e *Engine) usageDepth(declared, expTechs []string) float64 {
	if len(declared) == 0 || len(expTechs) == 0 {
		return 0
	}
	used := 0
	for _, s := range declared {
		if e.matcher.MatchesAny(s, expTechs) {
			used++
		}
	}
	return e.params.DepthPoints * float64(used) / float64(len(declared))
}
