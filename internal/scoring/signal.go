package scoring

import (
	"math"
	"strings"
)

// 红旗名称
const (
	FlagManySkillsNoExperience = "Many skills listed without experience"
	FlagDiverseStack           = "Unusually diverse tech stack for experience level"
	FlagMissingContact         = "Missing contact information"
)

// scoreSignal 信号一致性（上限 10）：从满分开始按一致性问题、职业轨迹和红旗扣分
func (e *Engine) scoreSignal(sc *scoreContext) float64 {
	p := &e.params
	f := sc.features
	score := MaxSignal

	declared := f.DeclaredSkills.Originals()
	expTechs := f.ExperienceTechs.Originals()

	issues := 0.0
	if len(declared) > 0 && len(expTechs) > 0 {
		used := 0
		for _, s := range declared {
			if e.matcher.MatchesAny(s, expTechs) {
				used++
			}
		}
		switch ratio := float64(used) / float64(len(declared)); {
		case ratio < p.CoherenceMajorRatio:
			issues += 2
		case ratio < p.CoherenceMinorRatio:
			issues++
		}
	}
	if projTechs := f.ProjectTechs.Originals(); len(projTechs) > 0 && len(declared) > 0 {
		used := 0
		for _, t := range projTechs {
			if e.matcher.MatchesAny(t, declared) {
				used++
			}
		}
		if float64(used)/float64(len(projTechs)) < p.ProjectCoherenceRatio {
			issues++
		}
	}
	coherence := math.Min(issues, p.CoherenceCap)
	score -= coherence

	// 职业轨迹：长期停留在初级岗位扣分，有从初级到高级的晋升加分
	roles := make([]string, 0, len(sc.rec.Experience))
	for _, exp := range sc.rec.Experience {
		roles = append(roles, exp.Role)
	}
	joined := strings.Join(roles, " ")
	hasJunior := anyKeyword(joined, p.JuniorKeywords)
	hasSenior := anyKeyword(joined, p.SeniorKeywords)
	career := 0.0
	if hasJunior && !hasSenior && len(sc.rec.Experience) > p.StuckJuniorExperiences {
		career += 0.5
	}
	if hasJunior && hasSenior {
		career -= 0.5
	}
	careerDeduction := clamp(career*p.CareerFactor, -p.CareerBonusCap, p.CareerPenaltyCap)
	score -= careerDeduction

	// 技能很多却没有经历只作为提示，不额外扣分
	flags := 0.0
	if len(declared) > p.ManySkillsThreshold && len(sc.rec.Experience) == 0 {
		sc.details.RedFlags = append(sc.details.RedFlags, FlagManySkillsNoExperience)
	}
	if len(f.ExperienceTechs) > p.DiverseStackThreshold && len(sc.rec.Experience) < p.DiverseStackMaxExperiences {
		flags++
		sc.details.RedFlags = append(sc.details.RedFlags, FlagDiverseStack)
	}
	if strings.TrimSpace(sc.rec.PersonalInfo.Email) == "" {
		flags += p.MissingContactWeight
		sc.details.RedFlags = append(sc.details.RedFlags, FlagMissingContact)
	}
	redFlags := math.Min(flags*p.RedFlagUnit, p.RedFlagCap)
	score -= redFlags

	sc.details.CoherenceDeduction = Round2(coherence)
	sc.details.CareerDeduction = Round2(careerDeduction)
	sc.details.RedFlagDeduction = Round2(redFlags)
	return clamp(score, 0, MaxSignal)
}
