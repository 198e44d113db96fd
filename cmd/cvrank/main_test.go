package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-ranker/internal/types"
)

func TestParseWeights(t *testing.T) {
	w, err := parseWeights("")
	require.NoError(t, err)
	assert.Nil(t, w)

	w, err = parseWeights("experience=30, technical_skills=35,projects=15")
	require.NoError(t, err)
	require.NotNil(t, w.Experience)
	assert.Equal(t, 30.0, *w.Experience)
	assert.Equal(t, 35.0, *w.TechnicalSkills)
	assert.Equal(t, 15.0, *w.Projects)
	assert.Nil(t, w.Education)

	for _, bad := range []string{"experience", "experience=abc", "experience=-1", "salary=10"} {
		_, err := parseWeights(bad)
		assert.Error(t, err, bad)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunRanksAndSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"id": "a", "personal_info": {"full_name": "A"}, "skills": ["python", "django", "aws"],
		"experience": [{"company": "Google", "period": "2022 - 2024", "technologies": ["python", "aws"]}]}`)
	b := writeFile(t, dir, "b.json", `[{"id": "b", "personal_info": {"full_name": "B"}, "skills": ["java", "azure"]}]`)
	broken := writeFile(t, dir, "broken.json", `{not json`)

	var stdout, stderr bytes.Buffer
	opts := options{skills: []string{"Python", "AWS"}, asJSON: true}
	err := run(context.Background(), opts, []string{b, broken, a, filepath.Join(dir, "missing.json")}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stderr.String(), "broken.json")
	assert.Contains(t, stderr.String(), "missing.json")

	var result types.RankedResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "A", result.Candidates[0].CandidateName)
	assert.Equal(t, 1, result.Candidates[0].Rank)
}

func TestRunTextReport(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"personal_info": {"full_name": "A"}, "skills": ["go"]}`)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), options{skills: []string{"Go"}}, []string{a}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "CV RANKING RESULTS")
	assert.Contains(t, stdout.String(), "Rank #1: A")
}

func TestRunRejectsBadInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Error(t, run(context.Background(), options{}, nil, &stdout, &stderr))

	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"skills": ["go"]}`)
	err := run(context.Background(), options{weights: "experience=50"}, []string{a}, &stdout, &stderr)
	assert.ErrorContains(t, err, "100")

	broken := writeFile(t, dir, "broken.json", `[1, 2]`)
	assert.Error(t, run(context.Background(), options{}, []string{broken}, &stdout, &stderr))
}
