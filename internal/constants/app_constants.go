package constants

import "time"

const (
	// ServiceName 服务名，用于追踪与日志
	ServiceName = "cv-ranker"

	// DefaultResultTTL 排序结果缓存的默认时长
	DefaultResultTTL = 24 * time.Hour
	// DefaultLockTTL 排序互斥锁的默认时长
	DefaultLockTTL = 2 * time.Minute

	// DefaultLeaderboardPageSize 排行榜分页默认条数
	DefaultLeaderboardPageSize = 20
	// MaxLeaderboardPageSize 排行榜分页最大条数
	MaxLeaderboardPageSize = 200

	// ReportObjectPrefix MinIO 中排序报告的对象前缀
	ReportObjectPrefix = "runs/"
)
