package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateRecordFlatSkills(t *testing.T) {
	data := `{
		"personal_info": {"full_name": "Alice Martin", "email": "alice@example.com"},
		"skills": ["Python", "Django", "AWS"],
		"experience": [{"company": "Google", "role": "Backend Engineer", "period": "2022 - 2024", "technologies": ["Python", "AWS"]}],
		"education": {"degree": "Master", "institution": "Université Paris", "year": 2021},
		"certifications": "AWS Solutions Architect, Scrum Master"
	}`
	var rec CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(data), &rec))

	assert.Equal(t, "Alice Martin", rec.DisplayName())
	assert.Equal(t, SkillSetFlat, rec.Skills.Kind)
	assert.Equal(t, []string{"Python", "Django", "AWS"}, rec.Skills.All())
	require.Len(t, rec.Experience, 1)
	assert.Equal(t, StringList{"Python", "AWS"}, rec.Experience[0].Technologies)
	require.Len(t, rec.Education, 1)
	assert.Equal(t, "2021", rec.Education[0].Year)
	assert.Equal(t, StringList{"AWS Solutions Architect", "Scrum Master"}, rec.Certifications)
}

func TestCandidateRecordCategorizedSkills(t *testing.T) {
	data := `{
		"name": "bob",
		"skills": {
			"tools": ["Jira"],
			"frameworks": ["React"],
			"programming_languages": ["JavaScript", 42, "Go"],
			"soft_skills": "communication",
			"certs": ["x"]
		}
	}`
	var rec CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(data), &rec))

	assert.Equal(t, "bob", rec.DisplayName())
	assert.Equal(t, SkillSetCategorized, rec.Skills.Kind)
	// 已知类别在前，其余按名称排序；非数组类别被忽略
	assert.Equal(t, []string{"programming_languages", "frameworks", "certs", "tools"}, rec.Skills.CategoryNames())
	assert.Equal(t, []string{"JavaScript", "Go", "React", "x", "Jira"}, rec.Skills.All())
}

func TestCandidateRecordMalformedSubstructures(t *testing.T) {
	data := `{
		"skills": 12,
		"experience": {"company": "not-a-list"},
		"projects": ["string project", {"title": "Real", "technologies": "Go, Redis"}],
		"education": [42, "BSc Computer Science", {"degree": "MSc"}],
		"personal_info": "oops"
	}`
	var rec CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(data), &rec))

	assert.Equal(t, SkillSetEmpty, rec.Skills.Kind)
	assert.True(t, rec.Skills.IsEmpty())
	assert.Empty(t, rec.Experience)
	require.Len(t, rec.Projects, 1)
	assert.Equal(t, StringList{"Go", "Redis"}, rec.Projects[0].Technologies)
	require.Len(t, rec.Education, 3)
	assert.Equal(t, "42", rec.Education[0].Degree)
	assert.Equal(t, "BSc Computer Science", rec.Education[1].Degree)
	assert.Equal(t, "MSc", rec.Education[2].Degree)
	assert.Equal(t, "Unknown", rec.DisplayName())
}

func TestCandidateRecordRejectsNonObject(t *testing.T) {
	var rec CandidateRecord
	err := json.Unmarshal([]byte(`["a"]`), &rec)
	assert.ErrorIs(t, err, ErrCandidateNotObject)
}

func TestSkillSetMarshalKeepsShape(t *testing.T) {
	var rec CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(`{"skills": {"databases": ["MySQL"]}}`), &rec))
	out, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"skills":{"databases":["MySQL"]}`)

	flat, err := json.Marshal(NewFlatSkills("Go"))
	require.NoError(t, err)
	assert.JSONEq(t, `["Go"]`, string(flat))

	empty, err := json.Marshal(SkillSet{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(empty))
}

func TestWeightConfigResolve(t *testing.T) {
	var cfg WeightConfig
	require.NoError(t, json.Unmarshal([]byte(`{"experience": 50, "signal": 0}`), &cfg))
	w := cfg.Resolve(DefaultWeights())
	assert.Equal(t, 50.0, w.Experience)
	assert.Equal(t, 0.0, w.Signal)
	assert.Equal(t, DefaultTechnicalSkillsWeight, w.TechnicalSkills)
	assert.Equal(t, DefaultProjectsWeight, w.Projects)

	var nilCfg *WeightConfig
	assert.Equal(t, DefaultWeights(), nilCfg.Resolve(DefaultWeights()))
	assert.Equal(t, 100.0, DefaultWeights().Sum())
}
