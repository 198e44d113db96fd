// Package features 将异构的候选人记录展开为去重后的技能特征
package features

import (
	"cv-ranker/internal/skills"
	"cv-ranker/internal/types"
)

// Skill 去重后的技能，保留首次出现的原始写法
type Skill struct {
	Key      string // 规范键
	Original string // 展示用原文
}

// SkillList 去重技能列表
type SkillList []Skill

// Originals 原文列表
func (l SkillList) Originals() []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = s.Original
	}
	return out
}

// Keys 规范键列表
func (l SkillList) Keys() []string {
	out := make([]string, len(l))
	for i, s := range l {
		out[i] = s.Key
	}
	return out
}

// Features 评分器消费的统一特征
type Features struct {
	Name            string
	DeclaredSkills  SkillList   // skills 字段中声明的技能
	ExperienceTechs SkillList   // 所有经历中的技术
	ProjectTechs    SkillList   // 所有项目中的技术
	AllSkills       SkillList   // 以上三者的并集
	PerExperience   []SkillList // 每段经历各自的技术
	HasLanguages    bool
	HasFrameworks   bool
}

type dedup struct {
	tax  *skills.Taxonomy
	seen map[string]struct{}
	list SkillList
}

func newDedup(tax *skills.Taxonomy) *dedup {
	return &dedup{tax: tax, seen: make(map[string]struct{})}
}

func (d *dedup) add(raws ...string) {
	for _, raw := range raws {
		key := d.tax.Normalize(raw)
		if key == "" {
			continue
		}
		if _, ok := d.seen[key]; ok {
			continue
		}
		d.seen[key] = struct{}{}
		d.list = append(d.list, Skill{Key: key, Original: raw})
	}
}

// Extract 展开候选人记录；tax 为 nil 时使用内置技能表
func Extract(rec *types.CandidateRecord, tax *skills.Taxonomy) Features {
	if tax == nil {
		tax = skills.DefaultTaxonomy()
	}
	f := Features{Name: rec.DisplayName()}

	declared := newDedup(tax)
	declared.add(rec.Skills.All()...)
	f.DeclaredSkills = declared.list

	f.HasLanguages = len(rec.Skills.Category("programming_languages")) > 0
	f.HasFrameworks = len(rec.Skills.Category("frameworks")) > 0

	expTechs := newDedup(tax)
	for _, exp := range rec.Experience {
		expTechs.add(exp.Technologies...)
		one := newDedup(tax)
		one.add(exp.Technologies...)
		f.PerExperience = append(f.PerExperience, one.list)
	}
	f.ExperienceTechs = expTechs.list

	projTechs := newDedup(tax)
	for _, p := range rec.Projects {
		projTechs.add(p.Technologies...)
	}
	f.ProjectTechs = projTechs.list

	all := newDedup(tax)
	all.add(f.DeclaredSkills.Originals()...)
	all.add(f.ExperienceTechs.Originals()...)
	all.add(f.ProjectTechs.Originals()...)
	f.AllSkills = all.list
	return f
}
