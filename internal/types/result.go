package types

import (
	"strconv"

	"cv-ranker/internal/skills"
)

// Bucket 候选人质量档位
type Bucket string

const (
	BucketExcellent Bucket = "excellent"
	BucketGood      Bucket = "good"
	BucketFair      Bucket = "fair"
)

// SubScores 五个子分数（各自已截断到 [0, 上限]）
type SubScores struct {
	Experience      float64 `json:"experience_quality"`
	TechnicalSkills float64 `json:"technical_skills"`
	Projects        float64 `json:"projects_impact"`
	Education       float64 `json:"education_certifications"`
	Signal          float64 `json:"signal_consistency"`
}

// ExperienceDetail 单段经历的评分明细
type ExperienceDetail struct {
	Company         string  `json:"company"`
	Tier            string  `json:"tier"`
	CompanyScore    float64 `json:"company_score"`
	RoleScore       float64 `json:"role_score"`
	InferredRole    string  `json:"inferred_role,omitempty"`
	DurationMonths  float64 `json:"duration_months"`
	DurationScore   float64 `json:"duration_score"`
	ExperienceScore float64 `json:"experience_score"`
}

// ScoreDetails 评分过程的可解释明细
type ScoreDetails struct {
	Experiences         []ExperienceDetail `json:"experiences,omitempty"`
	InferredRoleBonus   bool               `json:"inferred_role_bonus"`
	CrossFullstackBonus bool               `json:"cross_fullstack_bonus"`
	RequiredMatched     int                `json:"required_matched"`
	RequiredTotal       int                `json:"required_total"`
	SkillDepth          float64            `json:"skill_depth"`
	ProjectQuality      int                `json:"project_quality_indicators"`
	RelevantProjects    int                `json:"relevant_projects"`
	FakeProjects        int                `json:"fake_projects"`
	DegreeScore         float64            `json:"degree_score"`
	InstitutionScore    float64            `json:"institution_score"`
	CertificationScore  float64            `json:"certification_score"`
	CoherenceDeduction  float64            `json:"coherence_deduction"`
	CareerDeduction     float64            `json:"career_deduction"`
	RedFlagDeduction    float64            `json:"red_flag_deduction"`
	RedFlags            []string           `json:"red_flags,omitempty"`
}

// CandidateScore 单个候选人的评分结果
type CandidateScore struct {
	CandidateID   string               `json:"candidate_id,omitempty"`
	CandidateName string               `json:"candidate_name"`
	Rank          int                  `json:"rank"`
	TotalScore    float64              `json:"total_score"`
	Scores        SubScores            `json:"scores"`
	Bucket        Bucket               `json:"bucket"`
	Explanation   string               `json:"explanation"`
	SkillMatches  []skills.MatchResult `json:"skill_matches,omitempty"`
	Details       ScoreDetails         `json:"details"`
}

// StableKey 结果集中唯一的候选人标识，没有 ID 时退回到名次
func (c CandidateScore) StableKey() string {
	if c.CandidateID != "" {
		return c.CandidateID
	}
	return "rank-" + strconv.Itoa(c.Rank)
}

// RankedResult 排序后的结果及各档位人数
type RankedResult struct {
	Candidates     []CandidateScore `json:"candidates"`
	ExcellentCount int              `json:"excellent_count"`
	GoodCount      int              `json:"good_count"`
	FairCount      int              `json:"fair_count"`
}
