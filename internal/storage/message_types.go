package storage

import (
	"time"

	"cv-ranker/internal/types"
)

// 消息事件类型
const (
	EventRankingRequested = "ranking.requested"
	EventRankingCompleted = "ranking.completed"
)

// RankingRequestMessage 异步排序请求，候选人已按预筛选条件过滤
type RankingRequestMessage struct {
	RequestID   string                  `json:"request_id"`
	RunUUID     string                  `json:"run_uuid"`
	Fingerprint string                  `json:"fingerprint"`
	SubmittedAt time.Time               `json:"submitted_at"`
	Job         types.JobProfile        `json:"job"`
	Weights     *types.WeightConfig     `json:"weights,omitempty"`
	Candidates  []types.CandidateRecord `json:"candidates"`
}

// RankingCompletedMessage 排序完成通知，只携带摘要
type RankingCompletedMessage struct {
	RunUUID         string    `json:"run_uuid"`
	Fingerprint     string    `json:"fingerprint"`
	CompletedAt     time.Time `json:"completed_at"`
	CandidateCount  int       `json:"candidate_count"`
	ExcellentCount  int       `json:"excellent_count"`
	GoodCount       int       `json:"good_count"`
	FairCount       int       `json:"fair_count"`
	TopCandidateID  string    `json:"top_candidate_id,omitempty"`
	TopScore        float64   `json:"top_score,omitempty"`
	ReportObjectKey string    `json:"report_object_key,omitempty"`
}
