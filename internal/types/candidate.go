package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

// KnownSkillCategories 分类技能对象中已知的类别，按固定顺序展开
var KnownSkillCategories = []string{
	"programming_languages",
	"frameworks",
	"web_technologies",
	"mobile_technologies",
	"databases",
	"devops_tools",
	"data_science",
	"other",
}

// SkillSetKind 技能集合的形态
type SkillSetKind int

const (
	SkillSetEmpty SkillSetKind = iota
	SkillSetFlat
	SkillSetCategorized
)

// SkillSet 技能集合：扁平数组或按类别分组的对象
type SkillSet struct {
	Kind       SkillSetKind
	Flat       []string
	Categories map[string][]string
}

// NewFlatSkills 构造扁平技能集合
func NewFlatSkills(skills ...string) SkillSet {
	if len(skills) == 0 {
		return SkillSet{}
	}
	return SkillSet{Kind: SkillSetFlat, Flat: skills}
}

// NewCategorizedSkills 构造分类技能集合
func NewCategorizedSkills(categories map[string][]string) SkillSet {
	if len(categories) == 0 {
		return SkillSet{}
	}
	return SkillSet{Kind: SkillSetCategorized, Categories: categories}
}

// UnmarshalJSON 宽松解码，既不是数组也不是对象时视为空集合
func (s *SkillSet) UnmarshalJSON(data []byte) error {
	*s = SkillSet{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '[', '"':
		if flat := parseStringList(data); len(flat) > 0 {
			*s = NewFlatSkills(flat...)
		}
	case '{':
		obj := rawObject(data)
		categories := make(map[string][]string, len(obj))
		for name, raw := range obj {
			// 只保留数组形式的类别
			if rawArray(raw) == nil {
				continue
			}
			if list := parseStringList(raw); len(list) > 0 {
				categories[name] = list
			}
		}
		*s = NewCategorizedSkills(categories)
	}
	return nil
}

// MarshalJSON 按原形态输出
func (s SkillSet) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SkillSetFlat:
		return json.Marshal(s.Flat)
	case SkillSetCategorized:
		return json.Marshal(s.Categories)
	default:
		return []byte("[]"), nil
	}
}

// CategoryNames 已知类别按固定顺序在前，其余类别按名称排序在后
func (s SkillSet) CategoryNames() []string {
	if s.Kind != SkillSetCategorized {
		return nil
	}
	var names []string
	known := make(map[string]struct{}, len(KnownSkillCategories))
	for _, name := range KnownSkillCategories {
		known[name] = struct{}{}
		if _, ok := s.Categories[name]; ok {
			names = append(names, name)
		}
	}
	var extra []string
	for name := range s.Categories {
		if _, ok := known[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Category 返回指定类别的技能
func (s SkillSet) Category(name string) []string {
	if s.Kind != SkillSetCategorized {
		return nil
	}
	return s.Categories[name]
}

// All 按确定顺序展开全部技能（未去重）
func (s SkillSet) All() []string {
	switch s.Kind {
	case SkillSetFlat:
		out := make([]string, len(s.Flat))
		copy(out, s.Flat)
		return out
	case SkillSetCategorized:
		var out []string
		for _, name := range s.CategoryNames() {
			out = append(out, s.Categories[name]...)
		}
		return out
	default:
		return nil
	}
}

// IsEmpty 是否没有任何技能
func (s SkillSet) IsEmpty() bool {
	return len(s.All()) == 0
}

// PersonalInfo 候选人联系信息
type PersonalInfo struct {
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// UnmarshalJSON 宽松解码
func (p *PersonalInfo) UnmarshalJSON(data []byte) error {
	obj := rawObject(data)
	*p = PersonalInfo{
		FullName: rawString(obj["full_name"]),
		Email:    rawString(obj["email"]),
		Phone:    rawString(obj["phone"]),
	}
	return nil
}

// Experience 工作经历
type Experience struct {
	Company      string     `json:"company,omitempty"`
	Role         string     `json:"role,omitempty"`
	Period       string     `json:"period,omitempty"`
	Duration     string     `json:"duration,omitempty"`     // 显式时长，例如 "6 months"
	Technologies StringList `json:"technologies,omitempty"` // 该段经历使用的技术
	Description  string     `json:"description,omitempty"`
}

// ExperienceList 经历列表，非数组或非对象元素被忽略
type ExperienceList []Experience

// UnmarshalJSON 宽松解码
func (l *ExperienceList) UnmarshalJSON(data []byte) error {
	var out ExperienceList
	for _, item := range rawArray(data) {
		obj := rawObject(item)
		if obj == nil {
			continue
		}
		out = append(out, Experience{
			Company:      rawString(obj["company"]),
			Role:         rawString(obj["role"]),
			Period:       rawString(obj["period"]),
			Duration:     rawString(obj["duration"]),
			Technologies: parseStringList(obj["technologies"]),
			Description:  rawString(obj["description"]),
		})
	}
	*l = out
	return nil
}

// Project 项目经历
type Project struct {
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	Technologies StringList `json:"technologies,omitempty"`
}

// ProjectList 项目列表
type ProjectList []Project

// UnmarshalJSON 宽松解码
func (l *ProjectList) UnmarshalJSON(data []byte) error {
	var out ProjectList
	for _, item := range rawArray(data) {
		obj := rawObject(item)
		if obj == nil {
			continue
		}
		out = append(out, Project{
			Title:        rawString(obj["title"]),
			Description:  rawString(obj["description"]),
			Technologies: parseStringList(obj["technologies"]),
		})
	}
	*l = out
	return nil
}

// EducationEntry 教育经历，原始数据可以是字符串或对象
type EducationEntry struct {
	Degree      string `json:"degree,omitempty"`
	Institution string `json:"institution,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        string `json:"year,omitempty"`
}

// UnmarshalJSON 字符串形式整体视为学位描述
func (e *EducationEntry) UnmarshalJSON(data []byte) error {
	*e = parseEducationEntry(data)
	return nil
}

func parseEducationEntry(data []byte) EducationEntry {
	if obj := rawObject(data); obj != nil {
		return EducationEntry{
			Degree:      rawString(obj["degree"]),
			Institution: rawString(obj["institution"]),
			Field:       rawString(obj["field"]),
			Year:        rawString(obj["year"]),
		}
	}
	return EducationEntry{Degree: rawString(data)}
}

// IsZero 所有字段均为空
func (e EducationEntry) IsZero() bool {
	return e == EducationEntry{}
}

// EducationList 教育经历列表，接受数组、单个对象或单个字符串
type EducationList []EducationEntry

// UnmarshalJSON 宽松解码
func (l *EducationList) UnmarshalJSON(data []byte) error {
	var out EducationList
	if arr := rawArray(data); arr != nil {
		for _, item := range arr {
			if entry := parseEducationEntry(item); !entry.IsZero() {
				out = append(out, entry)
			}
		}
	} else if entry := parseEducationEntry(data); !entry.IsZero() {
		out = append(out, entry)
	}
	*l = out
	return nil
}

// CandidateRecord 候选人简历的结构化数据，对评分器只读
type CandidateRecord struct {
	ID             string         `json:"id,omitempty"`
	Name           string         `json:"name,omitempty"`
	PersonalInfo   PersonalInfo   `json:"personal_info"`
	Skills         SkillSet       `json:"skills"`
	Experience     ExperienceList `json:"experience,omitempty"`
	Projects       ProjectList    `json:"projects,omitempty"`
	Education      EducationList  `json:"education,omitempty"`
	Certifications StringList     `json:"certifications,omitempty"`
}

// ErrCandidateNotObject 顶层不是 JSON 对象
var ErrCandidateNotObject = errors.New("候选人记录必须是 JSON 对象")

// UnmarshalJSON 顶层必须是对象；各子结构格式错误时退化为空集合
func (c *CandidateRecord) UnmarshalJSON(data []byte) error {
	obj := rawObject(data)
	if obj == nil {
		return ErrCandidateNotObject
	}
	rec := CandidateRecord{
		ID:   rawString(obj["id"]),
		Name: rawString(obj["name"]),
	}
	_ = rec.PersonalInfo.UnmarshalJSON(obj["personal_info"])
	_ = rec.Skills.UnmarshalJSON(obj["skills"])
	_ = rec.Experience.UnmarshalJSON(obj["experience"])
	_ = rec.Projects.UnmarshalJSON(obj["projects"])
	_ = rec.Education.UnmarshalJSON(obj["education"])
	rec.Certifications = parseStringList(obj["certifications"])
	*c = rec
	return nil
}

// DisplayName 展示用姓名：personal_info.full_name，其次 name，否则 "Unknown"
func (c *CandidateRecord) DisplayName() string {
	if c.PersonalInfo.FullName != "" {
		return c.PersonalInfo.FullName
	}
	if c.Name != "" {
		return c.Name
	}
	return "Unknown"
}
