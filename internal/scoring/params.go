// Package scoring 实现五维候选人评分：经历、技术技能、项目、教育、信号一致性
package scoring

import (
	"math"
	"strings"
)

// 各子分数上限
const (
	MaxExperience = 35.0
	MaxTechnical  = 25.0
	MaxProjects   = 20.0
	MaxEducation  = 10.0
	MaxSignal     = 10.0
)

// CompanyTier 公司档位及对应的分数系数
type CompanyTier struct {
	Name       string
	Multiplier float64
	Companies  []string
}

// DurationBucket 时长分档：月数不超过 MaxMonths 时得 Points
type DurationBucket struct {
	MaxMonths float64
	Points    float64
}

// Params 评分常量，均可覆盖
type Params struct {
	// 经历
	CompanyTiers          []CompanyTier
	DefaultTierName       string
	DefaultTierMultiplier float64
	CompanyPoints         float64
	RolePoints            float64
	OpenRolePoints        float64 // 既无技能要求也无岗位名称时的角色分
	InferredRolePoints    float64 // 由技术栈推断岗位命中时的角色分
	DurationBuckets       []DurationBucket
	DurationCap           float64
	RecencyCurrent        float64
	RecencyWithinOneYear  float64
	RecencyWithinTwoYears float64
	RecencyStale          float64
	StaleYears            int
	ReferenceYear         int
	BestExperienceShare   float64
	MultiExperienceBonus  float64
	MultiExperienceMax    int
	CrossFullstackBonus   float64

	// 技术技能
	CoreMatchPoints    float64
	DepthPoints        float64
	LangFrameworkBonus float64
	NoMatchPenalty     float64
	GeneralPerSkill    float64
	GeneralCap         float64
	BreadthCap         float64

	// 项目
	NoProjectsScore       float64
	FakeProjectPenalty    float64
	FakeProjectMarkers    []string
	MinDescriptionLength  int
	MinProjectTechs       int
	ProjectTierStrongMany float64
	ProjectTierGoodMany   float64
	ProjectTierStrongFew  float64
	ProjectTierGoodFew    float64
	ProjectTierShallow    float64
	ProjectTierBase       float64
	ShallowProjectCount   int
	RelevanceHigh         float64
	RelevanceGood         float64
	RelevanceSome         float64
	RelevanceCap          float64
	NoRelevantPenalty     float64
	FewRelevantPenalty    float64

	// 教育
	FieldRelevancePoints     float64
	MasterPoints             float64
	BachelorPoints           float64
	OtherDegreePoints        float64
	DegreeCap                float64
	MasterKeywords           []string
	BachelorKeywords         []string
	InstitutionPoints        float64
	InstitutionCap           float64
	InstitutionKeywords      []string
	CertificationPoints      float64
	CertificationCap         float64
	RecognizedCertifications []string

	// 信号一致性
	CoherenceMajorRatio        float64
	CoherenceMinorRatio        float64
	ProjectCoherenceRatio      float64
	CoherenceCap               float64
	CareerFactor               float64
	CareerBonusCap             float64
	CareerPenaltyCap           float64
	JuniorKeywords             []string
	SeniorKeywords             []string
	StuckJuniorExperiences     int
	ManySkillsThreshold        int
	DiverseStackThreshold      int
	DiverseStackMaxExperiences int
	RedFlagUnit                float64
	RedFlagCap                 float64
	MissingContactWeight       float64
}

// DefaultParams 默认评分常量
func DefaultParams() Params {
	return Params{
		CompanyTiers: []CompanyTier{
			{Name: "tier1", Multiplier: 1.0, Companies: []string{
				"google", "microsoft", "amazon", "apple", "meta", "facebook",
				"netflix", "oracle", "salesforce", "adobe", "nvidia", "intel",
				"ibm", "cisco", "vmware", "palantir", "uber", "airbnb", "linkedin",
				"twitter", "x", "tesla", "spacex", "spotify", "snap", "snapchat",
				"pinterest", "reddit", "dropbox", "twitch", "github", "atlassian",
				"slack", "zoom", "bytedance", "tiktok", "tencent", "alibaba",
			}},
			{Name: "tier2", Multiplier: 0.8, Companies: []string{
				"capgemini", "accenture", "atos", "cgi", "sopra steria",
				"deloitte", "pwc", "kpmg", "ey", "ernst & young",
				"thales", "dassault", "sopra", "steria", "orange", "bouygues",
				"hp", "dell", "lenovo", "siemens", "bosch", "philips",
			}},
			{Name: "tier3", Multiplier: 0.67, Companies: []string{
				"sap", "red hat", "redhat", "mongodb", "elastic", "databricks",
				"snowflake", "datadog", "splunk", "servicenow", "workday",
				"zendesk", "shopify", "stripe", "square", "paypal", "ebay",
				"booking", "expedia", "trivago", "delivery hero", "doordash",
				"instacart", "lyft", "grab", "gojek", "yelp", "glassdoor",
			}},
			{Name: "tier4", Multiplier: 0.47, Companies: []string{
				"criteo", "blablacar", "doctolib", "veepee", "vinted",
				"mano mano", "backmarket", "qonto", "alan", "ledger",
				"swile", "payfit", "contentsquare", "algolia", "talend",
			}},
		},
		DefaultTierName:       "tier5",
		DefaultTierMultiplier: 0.33,
		CompanyPoints:         15,
		RolePoints:            10,
		OpenRolePoints:        5,
		InferredRolePoints:    5,
		DurationBuckets: []DurationBucket{
			{MaxMonths: 3, Points: 2}, // 不含 3 个月
			{MaxMonths: 6, Points: 5},
			{MaxMonths: 12, Points: 7},
			{MaxMonths: 24, Points: 9},
			{MaxMonths: math.Inf(1), Points: 10},
		},
		DurationCap:           10,
		RecencyCurrent:        2,
		RecencyWithinOneYear:  1.5,
		RecencyWithinTwoYears: 1,
		RecencyStale:          -1,
		StaleYears:            5,
		ReferenceYear:         2026,
		BestExperienceShare:   0.5,
		MultiExperienceBonus:  1.5,
		MultiExperienceMax:    3,
		CrossFullstackBonus:   3,

		CoreMatchPoints:    15,
		DepthPoints:        5,
		LangFrameworkBonus: 2,
		NoMatchPenalty:     3,
		GeneralPerSkill:    0.5,
		GeneralCap:         10,
		BreadthCap:         5,

		NoProjectsScore:       5,
		FakeProjectPenalty:    2,
		FakeProjectMarkers:    []string{"example", "demo", "test", "tutorial", "hello world"},
		MinDescriptionLength:  50,
		MinProjectTechs:       3,
		ProjectTierStrongMany: 15,
		ProjectTierGoodMany:   13,
		ProjectTierStrongFew:  12,
		ProjectTierGoodFew:    10,
		ProjectTierShallow:    8,
		ProjectTierBase:       6,
		ShallowProjectCount:   5,
		RelevanceHigh:         2.5,
		RelevanceGood:         1.5,
		RelevanceSome:         1,
		RelevanceCap:          5,
		NoRelevantPenalty:     6,
		FewRelevantPenalty:    3,

		FieldRelevancePoints:     3,
		MasterPoints:             2,
		BachelorPoints:           1.5,
		OtherDegreePoints:        1,
		DegreeCap:                5,
		MasterKeywords:           []string{"master", "masters", "msc", "mba"},
		BachelorKeywords:         []string{"bachelor", "licence", "bsc"},
		InstitutionPoints:        1.5,
		InstitutionCap:           3,
		InstitutionKeywords:      []string{"engineering", "école", "ecole", "school", "university", "université"},
		CertificationPoints:      0.5,
		CertificationCap:         2,
		RecognizedCertifications: []string{"aws", "azure", "gcp", "cisco", "scrum", "pmp", "oracle"},

		CoherenceMajorRatio:        0.3,
		CoherenceMinorRatio:        0.5,
		ProjectCoherenceRatio:      0.3,
		CoherenceCap:               5,
		CareerFactor:               1.5,
		CareerBonusCap:             1.5,
		CareerPenaltyCap:           3,
		JuniorKeywords:             []string{"intern", "internship", "stage", "junior", "trainee", "stagiaire"},
		SeniorKeywords:             []string{"senior", "lead", "architect", "manager", "chef", "principal", "staff"},
		StuckJuniorExperiences:     3,
		ManySkillsThreshold:        10,
		DiverseStackThreshold:      15,
		DiverseStackMaxExperiences: 3,
		RedFlagUnit:                0.5,
		RedFlagCap:                 2,
		MissingContactWeight:       0.5,
	}
}

// CompanyTierOf 返回公司所属档位与系数；不超过 3 个字符的公司名按整词匹配，避免 "x"、"ey" 之类误命中
func (p *Params) CompanyTierOf(company string) (string, float64) {
	norm := strings.ToLower(strings.TrimSpace(company))
	if norm != "" {
		words := wordSet(norm)
		for _, tier := range p.CompanyTiers {
			for _, name := range tier.Companies {
				if len(name) <= 3 {
					if _, ok := words[name]; ok {
						return tier.Name, tier.Multiplier
					}
					continue
				}
				if strings.Contains(norm, name) {
					return tier.Name, tier.Multiplier
				}
			}
		}
	}
	return p.DefaultTierName, p.DefaultTierMultiplier
}

// durationPoints 按分档换算时长分
func (p *Params) durationPoints(months float64) float64 {
	for i, b := range p.DurationBuckets {
		// 第一档为开区间 (< MaxMonths)，其余为闭区间
		if (i == 0 && months < b.MaxMonths) || (i > 0 && months <= b.MaxMonths) {
			return b.Points
		}
	}
	if n := len(p.DurationBuckets); n > 0 {
		return p.DurationBuckets[n-1].Points
	}
	return 0
}
