package types

// JobProfile 岗位要求
type JobProfile struct {
	RequiredSkills StringList `json:"required_skills,omitempty"`
	Role           string     `json:"role,omitempty"`
	// 仅作记录随运行结果保存，只校验非负，不参与打分
	MinExperienceYears float64 `json:"min_experience_years,omitempty"`
	Field              string  `json:"field,omitempty"` // 期望的专业方向
}

// 默认权重，合计 100
const (
	DefaultExperienceWeight      = 35.0
	DefaultTechnicalSkillsWeight = 25.0
	DefaultProjectsWeight        = 20.0
	DefaultEducationWeight       = 10.0
	DefaultSignalWeight          = 10.0
)

// WeightConfig 调用方传入的权重，未设置的项保持默认值
// 权重之和是否为 100 由调用方负责
type WeightConfig struct {
	Experience      *float64 `json:"experience,omitempty" yaml:"experience,omitempty"`
	TechnicalSkills *float64 `json:"technical_skills,omitempty" yaml:"technical_skills,omitempty"`
	Projects        *float64 `json:"projects,omitempty" yaml:"projects,omitempty"`
	Education       *float64 `json:"education,omitempty" yaml:"education,omitempty"`
	Signal          *float64 `json:"signal,omitempty" yaml:"signal,omitempty"`
}

// Weights 解析后的完整权重
type Weights struct {
	Experience      float64 `json:"experience"`
	TechnicalSkills float64 `json:"technical_skills"`
	Projects        float64 `json:"projects"`
	Education       float64 `json:"education"`
	Signal          float64 `json:"signal"`
}

// DefaultWeights 默认权重 35/25/20/10/10
func DefaultWeights() Weights {
	return Weights{
		Experience:      DefaultExperienceWeight,
		TechnicalSkills: DefaultTechnicalSkillsWeight,
		Projects:        DefaultProjectsWeight,
		Education:       DefaultEducationWeight,
		Signal:          DefaultSignalWeight,
	}
}

// Resolve 以 base 为底合并已设置的权重项
func (w *WeightConfig) Resolve(base Weights) Weights {
	if w == nil {
		return base
	}
	out := base
	if w.Experience != nil {
		out.Experience = *w.Experience
	}
	if w.TechnicalSkills != nil {
		out.TechnicalSkills = *w.TechnicalSkills
	}
	if w.Projects != nil {
		out.Projects = *w.Projects
	}
	if w.Education != nil {
		out.Education = *w.Education
	}
	if w.Signal != nil {
		out.Signal = *w.Signal
	}
	return out
}

// Sum 权重之和
func (w Weights) Sum() float64 {
	return w.Experience + w.TechnicalSkills + w.Projects + w.Education + w.Signal
}
