package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-ranker/internal/types"
)

func TestNewRankingRunStatus(t *testing.T) {
	job := types.JobProfile{Role: "Backend Engineer", RequiredSkills: types.StringList{"go", "redis"}}

	pending, err := NewRankingRun("run-1", "fp", job, types.DefaultWeights(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunStatusPending, pending.Status)
	assert.Nil(t, pending.CompletedAt)
	assert.JSONEq(t, `["go","redis"]`, string(pending.RequiredSkills))

	result := &types.RankedResult{
		Candidates:     []types.CandidateScore{{CandidateID: "a", Rank: 1}, {CandidateID: "b", Rank: 2}},
		ExcellentCount: 1,
		FairCount:      1,
	}
	done, err := NewRankingRun("run-1", "fp", job, types.DefaultWeights(), result)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 2, done.CandidateCount)
	assert.Equal(t, 1, done.ExcellentCount)
	assert.Equal(t, 0, done.GoodCount)
}

// 逐行记录还原后名次与档位计数不变
func TestScoreRecordsRoundTrip(t *testing.T) {
	result := &types.RankedResult{
		Candidates: []types.CandidateScore{
			{CandidateID: "a", CandidateName: "A", Rank: 1, TotalScore: 85, Bucket: types.BucketExcellent,
				Scores: types.SubScores{Experience: 30, TechnicalSkills: 25}},
			{CandidateName: "B", Rank: 2, TotalScore: 65, Bucket: types.BucketGood},
			{CandidateID: "a", CandidateName: "A2", Rank: 3, TotalScore: 20, Bucket: types.BucketFair},
		},
		ExcellentCount: 1,
		GoodCount:      1,
		FairCount:      1,
	}

	records, err := ScoreRecordsFromResult("run-9", result)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "rank-2", records[1].CandidateID)
	assert.Equal(t, "a", records[2].CandidateID, "重复 ID 原样保留")
	assert.Equal(t, 30.0, records[0].ExperienceQuality)
	assert.Equal(t, "run-9", records[0].RunUUID)

	back, err := ResultFromRecords(records)
	require.NoError(t, err)
	assert.Equal(t, result.Candidates, back.Candidates)
	assert.Equal(t, 1, back.ExcellentCount)
	assert.Equal(t, 1, back.GoodCount)
	assert.Equal(t, 1, back.FairCount)

	empty, err := ScoreRecordsFromResult("run-9", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResultFromRecordsBadJSON(t *testing.T) {
	_, err := ResultFromRecords([]CandidateScoreRecord{{CandidateID: "x", ScoreJSON: []byte("{")}})
	assert.Error(t, err)
}
