package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"cv-ranker/internal/api/handler"
	"cv-ranker/internal/api/middleware"
	"cv-ranker/internal/config"
)

// RegisterRoutes 注册 API 路由；健康检查不需要鉴权
func RegisterRoutes(h *server.Hertz, rankingHandler *handler.RankingHandler, cfg *config.ServerConfig) {
	h.Use(middleware.RequestID(), middleware.AccessLog())

	api := h.Group("/api/v1")
	api.GET("/health", rankingHandler.Health)

	secured := api.Group("", middleware.APIKeyAuth(cfg.APIKeys), middleware.RateLimit(cfg.RateLimitQPM))

	skills := secured.Group("/skills")
	skills.POST("/match", rankingHandler.MatchSkills)
	skills.GET("/expand", rankingHandler.ExpandSkills)

	rankings := secured.Group("/rankings")
	rankings.POST("", rankingHandler.Rank)
	rankings.GET("", rankingHandler.ListRuns)
	rankings.POST("/async", rankingHandler.SubmitRanking)
	rankings.GET("/:run_uuid", rankingHandler.GetRun)
	rankings.GET("/:run_uuid/leaderboard", rankingHandler.Leaderboard)
	rankings.GET("/:run_uuid/report", rankingHandler.Report)
}
