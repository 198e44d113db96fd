package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"cv-ranker/internal/types"
)

// 排序运行状态
const (
	RunStatusPending   = "PENDING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// RankingRun 一次排序运行
type RankingRun struct {
	RunUUID         string         `gorm:"type:char(36);primaryKey"`
	Fingerprint     string         `gorm:"type:char(64);index:idx_rr_fingerprint"`
	Status          string         `gorm:"type:varchar(20);default:'PENDING';index:idx_rr_status"`
	JobRole         string         `gorm:"type:varchar(255)"`
	JobField        string         `gorm:"type:varchar(255)"`
	RequiredSkills  datatypes.JSON `gorm:"type:json"`
	WeightsJSON     datatypes.JSON `gorm:"type:json"`
	CandidateCount  int            `gorm:"not null;default:0"`
	ExcellentCount  int            `gorm:"not null;default:0"`
	GoodCount       int            `gorm:"not null;default:0"`
	FairCount       int            `gorm:"not null;default:0"`
	ReportObjectKey string         `gorm:"type:varchar(1024)"`
	ErrorMessage    string         `gorm:"type:text"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_rr_created_at"`
	CompletedAt     *time.Time     `gorm:"type:datetime(6);null"`
}

func (RankingRun) TableName() string {
	return "ranking_runs"
}

// CandidateScoreRecord 单个候选人在一次运行中的得分
type CandidateScoreRecord struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement"`
	RunUUID           string         `gorm:"type:char(36);not null;index:idx_cs_run_candidate,priority:1;index:idx_cs_run_rank,priority:1"`
	CandidateID       string         `gorm:"type:varchar(255);not null;index:idx_cs_run_candidate,priority:2"`
	CandidateName     string         `gorm:"type:varchar(255)"`
	Rank              int            `gorm:"not null;index:idx_cs_run_rank,priority:2"`
	TotalScore        float64        `gorm:"type:decimal(6,2);not null"`
	ExperienceQuality float64        `gorm:"type:decimal(6,2)"`
	TechnicalSkills   float64        `gorm:"type:decimal(6,2)"`
	Projects          float64        `gorm:"type:decimal(6,2)"`
	Education         float64        `gorm:"type:decimal(6,2)"`
	SignalScore       float64        `gorm:"type:decimal(6,2)"`
	Bucket            string         `gorm:"type:varchar(16);index:idx_cs_bucket"`
	Explanation       string         `gorm:"type:text"`
	ScoreJSON         datatypes.JSON `gorm:"type:json"` // 完整的 CandidateScore
	CreatedAt         time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (CandidateScoreRecord) TableName() string {
	return "candidate_scores"
}

// NewRankingRun 根据排序结果构建运行记录
func NewRankingRun(runUUID, fingerprint string, job types.JobProfile, weights types.Weights, result *types.RankedResult) (*RankingRun, error) {
	skillsJSON, err := json.Marshal(job.RequiredSkills)
	if err != nil {
		return nil, fmt.Errorf("序列化技能要求失败: %w", err)
	}
	weightsJSON, err := json.Marshal(weights)
	if err != nil {
		return nil, fmt.Errorf("序列化权重失败: %w", err)
	}
	run := &RankingRun{
		RunUUID:        runUUID,
		Fingerprint:    fingerprint,
		Status:         RunStatusPending,
		JobRole:        job.Role,
		JobField:       job.Field,
		RequiredSkills: datatypes.JSON(skillsJSON),
		WeightsJSON:    datatypes.JSON(weightsJSON),
	}
	if result != nil {
		now := time.Now()
		run.Status = RunStatusCompleted
		run.CompletedAt = &now
		run.CandidateCount = len(result.Candidates)
		run.ExcellentCount = result.ExcellentCount
		run.GoodCount = result.GoodCount
		run.FairCount = result.FairCount
	}
	return run, nil
}

// ScoreRecordsFromResult 把排序结果展开为逐行记录
func ScoreRecordsFromResult(runUUID string, result *types.RankedResult) ([]CandidateScoreRecord, error) {
	if result == nil {
		return nil, nil
	}
	records := make([]CandidateScoreRecord, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("序列化候选人 %s 得分失败: %w", c.CandidateID, err)
		}
		records = append(records, CandidateScoreRecord{
			RunUUID:           runUUID,
			CandidateID:       c.StableKey(),
			CandidateName:     c.CandidateName,
			Rank:              c.Rank,
			TotalScore:        c.TotalScore,
			ExperienceQuality: c.Scores.Experience,
			TechnicalSkills:   c.Scores.TechnicalSkills,
			Projects:          c.Scores.Projects,
			Education:         c.Scores.Education,
			SignalScore:       c.Scores.Signal,
			Bucket:            string(c.Bucket),
			Explanation:       c.Explanation,
			ScoreJSON:         datatypes.JSON(raw),
		})
	}
	return records, nil
}

// ResultFromRecords 由按名次排列的记录还原排序结果
func ResultFromRecords(records []CandidateScoreRecord) (*types.RankedResult, error) {
	result := &types.RankedResult{Candidates: make([]types.CandidateScore, 0, len(records))}
	for _, rec := range records {
		var score types.CandidateScore
		if err := json.Unmarshal(rec.ScoreJSON, &score); err != nil {
			return nil, fmt.Errorf("解析候选人 %s 得分失败: %w", rec.CandidateID, err)
		}
		switch score.Bucket {
		case types.BucketExcellent:
			result.ExcellentCount++
		case types.BucketGood:
			result.GoodCount++
		default:
			result.FairCount++
		}
		result.Candidates = append(result.Candidates, score)
	}
	return result, nil
}
