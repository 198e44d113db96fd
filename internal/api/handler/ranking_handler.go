package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"

	"cv-ranker/internal/config"
	"cv-ranker/internal/logger"
	"cv-ranker/internal/service"
	"cv-ranker/internal/storage"
	"cv-ranker/internal/types"
)

// 权重之和允许的误差
const weightSumTolerance = 0.01

// HealthChecker 存储组件健康检查
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// RankingHandler 技能匹配与候选人排序的 HTTP 处理器
type RankingHandler struct {
	svc      *service.RankingService
	health   HealthChecker
	validate *validator.Validate
	timeout  time.Duration
}

// NewRankingHandler 创建处理器，health 可为 nil
func NewRankingHandler(cfg *config.ServerConfig, svc *service.RankingService, health HealthChecker) *RankingHandler {
	return &RankingHandler{
		svc:      svc,
		health:   health,
		validate: validator.New(),
		timeout:  config.GetDuration(cfg.RequestTimeout, 30*time.Second),
	}
}

// MatchRequest 技能匹配请求
type MatchRequest struct {
	RequiredSkills  []string `json:"required_skills" validate:"required,min=1,dive,required"`
	CandidateSkills []string `json:"candidate_skills"`
}

// RankingRequest 排序请求，candidates 逐条解析以便报告出错位置
type RankingRequest struct {
	JobProfile types.JobProfile    `json:"job_profile"`
	Candidates []json.RawMessage   `json:"candidates" validate:"required"`
	Weights    *types.WeightConfig `json:"weights,omitempty"`
	Filter     []string            `json:"filter,omitempty" validate:"omitempty,dive,required"`
}

// RankingResponse 同步排序响应
type RankingResponse struct {
	RunUUID         string `json:"run_uuid"`
	Cached          bool   `json:"cached"`
	ReportObjectKey string `json:"report_object_key,omitempty"`
	*types.RankedResult
}

func (h *RankingHandler) bind(ctx *app.RequestContext, req interface{}) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return errors.New("请求体为空")
	}
	if err := json.Unmarshal(body, req); err != nil {
		return fmt.Errorf("请求体不是合法的 JSON: %w", err)
	}
	return h.validate.Struct(req)
}

func badRequest(ctx *app.RequestContext, err error) {
	ctx.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
}

// writeError 把服务层错误映射为 HTTP 状态码
func writeError(c context.Context, ctx *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status = consts.StatusBadRequest
	case errors.Is(err, service.ErrRunNotFound):
		status = consts.StatusNotFound
	case errors.Is(err, service.ErrBackendUnavailable):
		status = consts.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = consts.StatusGatewayTimeout
	}
	if status >= consts.StatusInternalServerError {
		logger.Ctx(c).Error().Err(err).Str("path", string(ctx.Path())).Msg("请求处理失败")
	}
	ctx.JSON(status, utils.H{"error": err.Error()})
}

func (h *RankingHandler) withTimeout(c context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c)
	}
	return context.WithTimeout(c, h.timeout)
}

func (h *RankingHandler) toRankRequest(req *RankingRequest) (service.RankRequest, error) {
	candidates := make([]types.CandidateRecord, len(req.Candidates))
	for i, raw := range req.Candidates {
		if err := json.Unmarshal(raw, &candidates[i]); err != nil {
			return service.RankRequest{}, fmt.Errorf("candidates[%d]: %w", i, err)
		}
	}
	// 引擎不校验权重之和，由接口层保证
	if sum := h.svc.ResolveWeights(req.Weights).Sum(); math.Abs(sum-100) > weightSumTolerance {
		return service.RankRequest{}, fmt.Errorf("权重之和必须为 100，当前为 %.2f", sum)
	}
	return service.RankRequest{
		Job:        req.JobProfile,
		Candidates: candidates,
		Weights:    req.Weights,
		Filter:     req.Filter,
	}, nil
}

// MatchSkills POST /skills/match
func (h *RankingHandler) MatchSkills(c context.Context, ctx *app.RequestContext) {
	var req MatchRequest
	if err := h.bind(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"results": h.svc.Match(req.RequiredSkills, req.CandidateSkills)})
}

// ExpandSkills GET /skills/expand?term=
func (h *RankingHandler) ExpandSkills(c context.Context, ctx *app.RequestContext) {
	term := ctx.Query("term")
	if term == "" {
		badRequest(ctx, errors.New("缺少查询参数 term"))
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"term": term, "expanded": h.svc.Expand(term)})
}

// Rank POST /rankings
func (h *RankingHandler) Rank(c context.Context, ctx *app.RequestContext) {
	var req RankingRequest
	if err := h.bind(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}
	rankReq, err := h.toRankRequest(&req)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	tctx, cancel := h.withTimeout(c)
	defer cancel()
	out, err := h.svc.Rank(tctx, rankReq)
	if err != nil {
		if errors.Is(err, service.ErrRankingInProgress) {
			ctx.JSON(consts.StatusAccepted, utils.H{"status": "in_progress", "message": "相同的排序请求正在处理中，请稍后重试"})
			return
		}
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, RankingResponse{
		RunUUID:         out.RunUUID,
		Cached:          out.Cached,
		ReportObjectKey: out.ReportObjectKey,
		RankedResult:    out.Result,
	})
}

// SubmitRanking POST /rankings/async
func (h *RankingHandler) SubmitRanking(c context.Context, ctx *app.RequestContext) {
	var req RankingRequest
	if err := h.bind(ctx, &req); err != nil {
		badRequest(ctx, err)
		return
	}
	rankReq, err := h.toRankRequest(&req)
	if err != nil {
		badRequest(ctx, err)
		return
	}
	receipt, err := h.svc.Submit(c, rankReq)
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusAccepted, receipt)
}

// GetRun GET /rankings/:run_uuid
func (h *RankingHandler) GetRun(c context.Context, ctx *app.RequestContext) {
	view, err := h.svc.GetRun(c, ctx.Param("run_uuid"))
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, view)
}

// ListRuns GET /rankings?limit=&offset=
func (h *RankingHandler) ListRuns(c context.Context, ctx *app.RequestContext) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	runs, err := h.svc.ListRuns(c, limit, offset)
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"runs": runs, "limit": limit, "offset": offset})
}

// Leaderboard GET /rankings/:run_uuid/leaderboard?cursor=&limit=
func (h *RankingHandler) Leaderboard(c context.Context, ctx *app.RequestContext) {
	cursor, err := strconv.ParseInt(ctx.DefaultQuery("cursor", "0"), 10, 64)
	if err != nil {
		badRequest(ctx, errors.New("cursor 必须是整数"))
		return
	}
	limit, err := strconv.ParseInt(ctx.DefaultQuery("limit", "0"), 10, 64)
	if err != nil {
		badRequest(ctx, errors.New("limit 必须是整数"))
		return
	}
	page, err := h.svc.Leaderboard(c, ctx.Param("run_uuid"), cursor, limit)
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, page)
}

// Report GET /rankings/:run_uuid/report?format=json|txt
func (h *RankingHandler) Report(c context.Context, ctx *app.RequestContext) {
	format := ctx.DefaultQuery("format", storage.ReportFormatJSON)
	contentType := "application/json"
	switch format {
	case storage.ReportFormatJSON:
	case storage.ReportFormatText:
		contentType = "text/plain; charset=utf-8"
	default:
		badRequest(ctx, fmt.Errorf("不支持的报告格式: %s", format))
		return
	}
	data, err := h.svc.Report(c, ctx.Param("run_uuid"), format)
	if err != nil {
		writeError(c, ctx, err)
		return
	}
	ctx.Data(consts.StatusOK, contentType, data)
}

// Health GET /health
func (h *RankingHandler) Health(c context.Context, ctx *app.RequestContext) {
	resp := utils.H{"status": "ok"}
	if h.health != nil {
		components := h.health.Health(c)
		for _, v := range components {
			if v != "up" {
				resp["status"] = "degraded"
				break
			}
		}
		resp["components"] = components
	}
	ctx.JSON(consts.StatusOK, resp)
}
