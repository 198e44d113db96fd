package scoring

import (
	"math"
	"strings"

	"cv-ranker/internal/types"
)

// degreeLevel 单条教育经历的学位分
func (e *Engine) degreeLevel(entry types.EducationEntry) float64 {
	p := &e.params
	switch {
	case anyKeyword(entry.Degree, p.MasterKeywords):
		return p.MasterPoints
	case anyKeyword(entry.Degree, p.BachelorKeywords):
		return p.BachelorPoints
	}
	return p.OtherDegreePoints
}

// fieldRelevant 专业方向是否与岗位领域相关；未填写 field 时退而检查学位描述
func fieldRelevant(entry types.EducationEntry, keywords []string) bool {
	text := entry.Field
	if text == "" {
		text = entry.Degree
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// scoreEducation 教育与证书（上限 10）
// 学位分取所有条目中的最大值，多个学位不累加
func (e *Engine) scoreEducation(sc *scoreContext) float64 {
	p := &e.params
	entries := sc.rec.Education

	degree := 0.0
	if len(entries) > 0 {
		_, fieldKeywords := roleKeywords(sc.job.Field)
		if len(fieldKeywords) > 0 {
			for _, entry := range entries {
				if fieldRelevant(entry, fieldKeywords) {
					degree += p.FieldRelevancePoints
					break
				}
			}
		}
		best := 0.0
		for _, entry := range entries {
			best = math.Max(best, e.degreeLevel(entry))
		}
		degree += best
	}
	degree = math.Min(degree, p.DegreeCap)

	institution := 0.0
	for _, entry := range entries {
		if containsAny(strings.ToLower(entry.Institution), p.InstitutionKeywords) {
			institution = math.Min(p.InstitutionPoints, p.InstitutionCap)
			break
		}
	}

	recognized := 0
	for _, cert := range sc.rec.Certifications {
		if containsAny(strings.ToLower(cert), p.RecognizedCertifications) {
			recognized++
		}
	}
	certs := math.Min(p.CertificationCap, float64(recognized)*p.CertificationPoints)

	sc.details.DegreeScore = Round2(degree)
	sc.details.InstitutionScore = Round2(institution)
	sc.details.CertificationScore = Round2(certs)
	return clamp(degree+institution+certs, 0, MaxEducation)
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
