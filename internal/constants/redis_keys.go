package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "cvrank"

	// RankingModulePrefix 排序模块
	RankingModulePrefix = "ranking"

	// EntityResult 排序结果实体
	EntityResult = "result"
	// EntityLeaderboard 排行榜实体
	EntityLeaderboard = "leaderboard"
	// EntityLock 分布式锁实体
	EntityLock = "lock"
	// EntityRun 运行记录实体
	EntityRun = "run"

	// KeyRankingResult 按请求指纹缓存的排序结果 (STRING, JSON)
	// 格式: cvrank:ranking:result:{fingerprint}
	KeyRankingResult = AppPrefix + ":" + RankingModulePrefix + ":" + EntityResult + ":%s"

	// KeyRankingLock 同一指纹的排序互斥锁 (STRING)
	// 格式: cvrank:ranking:lock:{fingerprint}
	KeyRankingLock = AppPrefix + ":" + RankingModulePrefix + ":" + EntityLock + ":%s"

	// KeyRankingLeaderboard 单次运行的排行榜 (ZSET, member=候选人ID)
	// 格式: cvrank:ranking:leaderboard:{runUUID}
	KeyRankingLeaderboard = AppPrefix + ":" + RankingModulePrefix + ":" + EntityLeaderboard + ":%s"

	// KeyRankingRunByFingerprint 指纹到运行 UUID 的映射 (STRING)
	// 格式: cvrank:ranking:run:{fingerprint}
	KeyRankingRunByFingerprint = AppPrefix + ":" + RankingModulePrefix + ":" + EntityRun + ":%s"
)
