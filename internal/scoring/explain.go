package scoring

import (
	"strings"

	"cv-ranker/internal/types"
)

// 解释文本阈值
const (
	strongExperience   = 25.0
	goodExperience     = 15.0
	limitedExperience  = 10.0
	highTechnical      = 18.0
	goodTechnical      = 12.0
	lowTechnical       = 10.0
	strongProjects     = 15.0
	fewProjects        = 8.0
	lowSignal          = 7.0
	maxCompanyNameLen  = 30
	truncatedNameLen   = 27
	defaultExplanation = "Standard candidate profile"
)

// shortenCompany 公司名过长时截断
func shortenCompany(name string) string {
	r := []rune(name)
	if len(r) > maxCompanyNameLen {
		return string(r[:truncatedNameLen]) + "..."
	}
	return name
}

// explain 由主要子分数生成可读解释，形如 "+ Strong experience at X | - Fewer personal projects"
func explain(sub types.SubScores, details types.ScoreDetails, required []string) string {
	var parts []string

	if len(details.Experiences) > 0 {
		best := details.Experiences[0]
		for _, d := range details.Experiences[1:] {
			if d.ExperienceScore > best.ExperienceScore {
				best = d
			}
		}
		company := shortenCompany(best.Company)
		if company == "" {
			company = "company"
		}
		switch {
		case sub.Experience >= strongExperience:
			parts = append(parts, "+ Strong experience at "+company)
		case sub.Experience >= goodExperience:
			parts = append(parts, "+ Good experience at "+company)
		case sub.Experience < limitedExperience:
			parts = append(parts, "- Limited experience")
		}
	}

	switch {
	case details.RequiredMatched > 0 && len(required) > 0:
		head := required
		if len(head) > 2 {
			head = head[:2]
		}
		switch {
		case sub.TechnicalSkills >= highTechnical:
			parts = append(parts, "+ High "+strings.Join(head, "/")+" relevance")
		case sub.TechnicalSkills >= goodTechnical:
			parts = append(parts, "+ Good technical skills match")
		default:
			parts = append(parts, "- Lower technical skills relevance")
		}
	case sub.TechnicalSkills < lowTechnical:
		parts = append(parts, "- Lower technical skills relevance")
	}

	switch {
	case sub.Projects >= strongProjects:
		parts = append(parts, "+ Strong projects")
	case sub.Projects < fewProjects:
		parts = append(parts, "- Fewer personal projects")
	}

	if sub.Signal < lowSignal {
		parts = append(parts, "- CV consistency issues")
	}

	if len(parts) == 0 {
		return defaultExplanation
	}
	return strings.Join(parts, " | ")
}
