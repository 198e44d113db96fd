package scoring

import (
	"math"
)

// isFakeProject 标题或描述中含教程、演示类标记
func (e *Engine) isFakeProject(title, description string) bool {
	return anyKeyword(title, e.params.FakeProjectMarkers) || anyKeyword(description, e.params.FakeProjectMarkers)
}

// scoreProjects 项目（上限 20）：质量指标决定基础档位，加相关性奖励，再扣不相关惩罚
func (e *Engine) scoreProjects(sc *scoreContext) float64 {
	p := &e.params
	projects := sc.rec.Projects
	if len(projects) == 0 {
		return p.NoProjectsScore
	}

	expTechs := sc.features.ExperienceTechs.Originals()
	score, relevance := 0.0, 0.0
	quality, relevant, fake := 0, 0, 0
	for _, proj := range projects {
		if e.isFakeProject(proj.Title, proj.Description) {
			score -= p.FakeProjectPenalty
			fake++
			continue
		}
		techs := nonEmpty(proj.Technologies)
		if len([]rune(proj.Description)) > p.MinDescriptionLength {
			quality++
		}
		if len(techs) >= p.MinProjectTechs {
			quality++
		}
		if len(sc.required) > 0 && len(techs) > 0 {
			if matched := e.matcher.CountMatched(sc.required, techs); matched > 0 {
				relevant++
				quality++
				switch {
				case matched >= 3:
					relevance += p.RelevanceHigh
				case matched == 2:
					relevance += p.RelevanceGood
				default:
					relevance += p.RelevanceSome
				}
			}
		}
		// 项目技术与工作经历一致，说明项目可信
		if len(expTechs) > 0 && len(techs) > 0 {
			for _, t := range techs {
				if e.matcher.MatchesAny(t, expTechs) {
					quality++
					break
				}
			}
		}
	}

	n := len(projects)
	switch {
	case n >= 3 && quality >= 2*n:
		score += p.ProjectTierStrongMany
	case n >= 3 && quality >= n:
		score += p.ProjectTierGoodMany
	case n <= 2 && quality >= 2*n:
		score += p.ProjectTierStrongFew
	case n <= 2 && quality >= n:
		score += p.ProjectTierGoodFew
	case n > p.ShallowProjectCount:
		score += p.ProjectTierShallow
	default:
		score += p.ProjectTierBase
	}
	score += math.Min(relevance, p.RelevanceCap)

	if len(sc.required) > 0 {
		switch {
		case relevant == 0:
			score -= p.NoRelevantPenalty
		case float64(relevant) < float64(n)/2:
			score -= p.FewRelevantPenalty
		}
	}

	sc.details.ProjectQuality = quality
	sc.details.RelevantProjects = relevant
	sc.details.FakeProjects = fake
	return clamp(score, 0, MaxProjects)
}
