package scoring

import (
	"math"
	"sort"
	"strings"

	"cv-ranker/internal/types"
)

// 由技术栈推断的岗位方向
const (
	RoleFrontend  = "frontend"
	RoleBackend   = "backend"
	RoleFullstack = "fullstack"
)

// stackSides 判断一组规范键是否覆盖前端、后端
func (e *Engine) stackSides(keys []string) (front, back bool) {
	tax := e.matcher.Taxonomy()
	for _, k := range keys {
		if tax.InFamily(k, RoleFrontend) {
			front = true
		}
		if tax.InFamily(k, RoleBackend) {
			back = true
		}
	}
	return front, back
}

// InferRole 由技术栈推断岗位方向，无法推断时返回空串
func (e *Engine) InferRole(keys []string) string {
	front, back := e.stackSides(keys)
	switch {
	case front && back:
		return RoleFullstack
	case front:
		return RoleFrontend
	case back:
		return RoleBackend
	}
	return ""
}

// jobRoleAccepts 推断出的方向是否满足岗位名称
func jobRoleAccepts(jobRole, inferred string) bool {
	c := compact(jobRole)
	switch {
	case strings.Contains(c, RoleFullstack):
		return inferred == RoleFullstack
	case strings.Contains(c, RoleFrontend):
		return inferred == RoleFrontend || inferred == RoleFullstack
	case strings.Contains(c, RoleBackend):
		return inferred == RoleBackend || inferred == RoleFullstack
	}
	return false
}

// jobWantsFullstack 岗位名称含 fullstack，或必需技能同时覆盖前后端
func (e *Engine) jobWantsFullstack(sc *scoreContext) bool {
	if strings.Contains(compact(sc.job.Role), RoleFullstack) {
		return true
	}
	front, back := e.stackSides(e.matcher.Taxonomy().NormalizeAll(sc.required))
	return front && back
}

// titleRelevance 岗位名称关键词（长度 > 3）在经历职位中的命中比例
func (e *Engine) titleRelevance(expRole, jobRole string) float64 {
	all, significant := roleKeywords(jobRole)
	if len(all) == 0 {
		return 0
	}
	lower := strings.ToLower(expRole)
	hits := 0
	for _, kw := range significant {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return e.params.RolePoints * float64(hits) / float64(len(all))
}

// scoreExperience 经历质量（上限 35）：公司档位 + 角色相关度 + 时长与新近度
func (e *Engine) scoreExperience(sc *scoreContext) float64 {
	exps := sc.rec.Experience
	if len(exps) == 0 {
		return 0
	}
	p := &e.params

	scores := make([]float64, 0, len(exps))
	inferredUsed := false
	for i, exp := range exps {
		tierName, multiplier := p.CompanyTierOf(exp.Company)
		companyScore := p.CompanyPoints * multiplier

		techs := nonEmpty(exp.Technologies)
		role := 0.0
		if len(sc.required) > 0 && len(techs) > 0 {
			matched := e.matcher.CountMatched(sc.required, techs)
			role += p.RolePoints * float64(matched) / float64(len(sc.required))
		}
		if sc.job.Role != "" {
			role += e.titleRelevance(exp.Role, sc.job.Role)
		}
		role = math.Min(role, p.RolePoints)

		inferred := ""
		if role == 0 && sc.job.Role != "" {
			if r := e.InferRole(sc.features.PerExperience[i].Keys()); r != "" && jobRoleAccepts(sc.job.Role, r) {
				inferred = r
				role = p.InferredRolePoints
				inferredUsed = true
			}
		}
		if len(sc.required) == 0 && sc.job.Role == "" {
			role = p.OpenRolePoints
		}

		months := ParseDurationMonths(exp.Period, exp.Duration)
		duration := math.Min(p.durationPoints(months)+p.RecencyBonus(exp.Period), p.DurationCap)

		total := companyScore + role + duration
		scores = append(scores, total)
		sc.details.Experiences = append(sc.details.Experiences, types.ExperienceDetail{
			Company:         exp.Company,
			Tier:            tierName,
			CompanyScore:    Round2(companyScore),
			RoleScore:       Round2(role),
			InferredRole:    inferred,
			DurationMonths:  math.Round(months*10) / 10,
			DurationScore:   Round2(duration),
			ExperienceScore: Round2(total),
		})
	}

	combined := e.combineExperiences(scores)
	sc.details.InferredRoleBonus = inferredUsed
	// 推断角色加分与跨经历全栈加分互斥
	if !inferredUsed && e.crossExperienceFullstack(sc) {
		combined += p.CrossFullstackBonus
		sc.details.CrossFullstackBonus = true
	}
	return clamp(combined, 0, MaxExperience)
}

// combineExperiences 最佳经历占一半，其余平均占一半，再按经历数量加分
func (e *Engine) combineExperiences(scores []float64) float64 {
	p := &e.params
	if len(scores) == 1 {
		return math.Min(scores[0], MaxExperience)
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	rest := 0.0
	for _, s := range sorted[1:] {
		rest += s
	}
	rest /= float64(len(sorted) - 1)
	weighted := sorted[0]*p.BestExperienceShare + rest*(1-p.BestExperienceShare)

	extra := len(sorted) - 1
	if extra > p.MultiExperienceMax {
		extra = p.MultiExperienceMax
	}
	return math.Min(weighted+float64(extra)*p.MultiExperienceBonus, MaxExperience)
}

// crossExperienceFullstack 岗位需要全栈、没有单段经历同时覆盖前后端，但合并后覆盖
func (e *Engine) crossExperienceFullstack(sc *scoreContext) bool {
	if !e.jobWantsFullstack(sc) {
		return false
	}
	for _, techs := range sc.features.PerExperience {
		if front, back := e.stackSides(techs.Keys()); front && back {
			return false
		}
	}
	front, back := e.stackSides(sc.features.ExperienceTechs.Keys())
	return front && back
}
