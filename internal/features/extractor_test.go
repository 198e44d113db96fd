package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-ranker/internal/types"
)

func TestExtractUnionAndDedup(t *testing.T) {
	data := `{
		"personal_info": {"full_name": "Alice"},
		"skills": {"programming_languages": ["Python", "JavaScript"], "frameworks": ["React.js"], "extras": ["Node.js"]},
		"experience": [
			{"company": "A", "technologies": ["python", "ReactJS", "Docker"]},
			{"company": "B", "technologies": ["node", "NodeJS"]}
		],
		"projects": [{"title": "p", "technologies": ["K8s", "docker"]}]
	}`
	var rec types.CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(data), &rec))

	f := Extract(&rec, nil)
	assert.Equal(t, "Alice", f.Name)
	assert.True(t, f.HasLanguages)
	assert.True(t, f.HasFrameworks)
	assert.Equal(t, []string{"python", "javascript", "reactjs", "nodejs"}, f.DeclaredSkills.Keys())
	assert.Equal(t, []string{"Python", "JavaScript", "React.js", "Node.js"}, f.DeclaredSkills.Originals())
	assert.Equal(t, []string{"python", "reactjs", "docker", "node", "nodejs"}, f.ExperienceTechs.Keys())
	require.Len(t, f.PerExperience, 2)
	assert.Equal(t, []string{"node", "nodejs"}, f.PerExperience[1].Keys())
	assert.Equal(t, []string{"kubernetes", "docker"}, f.ProjectTechs.Keys())
	assert.Equal(t, []string{"python", "javascript", "reactjs", "nodejs", "docker", "node", "kubernetes"}, f.AllSkills.Keys())
	// 并集保留首次出现的原文
	assert.Equal(t, "Python", f.AllSkills[0].Original)
}

func TestExtractEmptyRecord(t *testing.T) {
	var rec types.CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(`{}`), &rec))

	f := Extract(&rec, nil)
	assert.Equal(t, "Unknown", f.Name)
	assert.Empty(t, f.AllSkills)
	assert.Empty(t, f.PerExperience)
	assert.False(t, f.HasLanguages)
}
