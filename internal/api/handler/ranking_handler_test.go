package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-ranker/internal/api/handler"
	"cv-ranker/internal/config"
	"cv-ranker/internal/service"
)

const (
	candidateA = `{"id": "a", "personal_info": {"full_name": "A"}, "skills": ["python", "django", "aws"],
		"experience": [{"company": "Google", "period": "2022 - 2024", "technologies": ["python", "aws"]}]}`
	candidateB = `{"id": "b", "personal_info": {"full_name": "B"}, "skills": ["java", "azure"]}`
)

type fakeHealth map[string]string

func (f fakeHealth) Health(context.Context) map[string]string { return f }

func newTestEngine(t *testing.T, health handler.HealthChecker) *server.Hertz {
	t.Helper()
	cfg := config.Default()
	svc := service.New(service.NewRankerFromConfig(cfg.Scoring, zerolog.Nop()))
	h := handler.NewRankingHandler(&cfg.Server, svc, health)

	engine := server.New()
	engine.GET("/health", h.Health)
	engine.POST("/skills/match", h.MatchSkills)
	engine.GET("/skills/expand", h.ExpandSkills)
	engine.POST("/rankings", h.Rank)
	engine.GET("/rankings", h.ListRuns)
	engine.POST("/rankings/async", h.SubmitRanking)
	engine.GET("/rankings/:run_uuid", h.GetRun)
	engine.GET("/rankings/:run_uuid/leaderboard", h.Leaderboard)
	engine.GET("/rankings/:run_uuid/report", h.Report)
	return engine
}

func doJSON(engine *server.Hertz, method, url, body string) (int, map[string]interface{}) {
	var reqBody *ut.Body
	if body != "" {
		buf := bytes.NewBufferString(body)
		reqBody = &ut.Body{Body: buf, Len: buf.Len()}
	}
	resp := ut.PerformRequest(engine.Engine, method, url, reqBody,
		ut.Header{Key: "Content-Type", Value: "application/json"})
	out := map[string]interface{}{}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	return resp.Code, out
}

func TestHealth(t *testing.T) {
	code, body := doJSON(newTestEngine(t, nil), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = doJSON(newTestEngine(t, fakeHealth{"mysql": "up", "redis": "down: refused"}), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["components"], "redis")
}

func TestMatchSkills(t *testing.T) {
	engine := newTestEngine(t, nil)

	code, body := doJSON(engine, "POST", "/skills/match",
		`{"required_skills": ["Python", "Kubernetes"], "candidate_skills": ["python3", "photoshop"]}`)
	require.Equal(t, http.StatusOK, code)
	results, ok := body["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "Python", first["required"])
	assert.NotEmpty(t, first["matched"])
	second := results[1].(map[string]interface{})
	assert.Empty(t, second["matched"])

	code, _ = doJSON(engine, "POST", "/skills/match", "")
	assert.Equal(t, http.StatusBadRequest, code, "空请求体")

	code, _ = doJSON(engine, "POST", "/skills/match", `{"candidate_skills": ["go"]}`)
	assert.Equal(t, http.StatusBadRequest, code, "缺少 required_skills")

	code, _ = doJSON(engine, "POST", "/skills/match", `{"required_skills": ["go", ""]}`)
	assert.Equal(t, http.StatusBadRequest, code, "技能不能为空字符串")
}

func TestExpandSkills(t *testing.T) {
	engine := newTestEngine(t, nil)

	code, body := doJSON(engine, "GET", "/skills/expand?term=cloud", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["expanded"], "aws")

	code, _ = doJSON(engine, "GET", "/skills/expand", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRankSync(t *testing.T) {
	engine := newTestEngine(t, nil)
	req := `{"job_profile": {"required_skills": ["Python", "AWS"]}, "candidates": [` + candidateB + `,` + candidateA + `]}`

	code, body := doJSON(engine, "POST", "/rankings", req)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["run_uuid"])
	assert.Equal(t, false, body["cached"])

	candidates := body["candidates"].([]interface{})
	require.Len(t, candidates, 2)
	top := candidates[0].(map[string]interface{})
	assert.Equal(t, "A", top["candidate_name"])
	assert.EqualValues(t, 1, top["rank"])
}

func TestRankValidation(t *testing.T) {
	engine := newTestEngine(t, nil)

	t.Run("候选人不是对象时报告下标", func(t *testing.T) {
		code, body := doJSON(engine, "POST", "/rankings",
			`{"job_profile": {}, "candidates": [`+candidateA+`, ["not", "an", "object"]]}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, body["error"], "candidates[1]")
	})

	t.Run("缺少候选人", func(t *testing.T) {
		code, _ := doJSON(engine, "POST", "/rankings", `{"job_profile": {}}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("权重之和不是100", func(t *testing.T) {
		code, body := doJSON(engine, "POST", "/rankings",
			`{"job_profile": {}, "candidates": [`+candidateA+`], "weights": {"experience": 25}}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, body["error"], "90.00")
	})

	t.Run("负的经验年限", func(t *testing.T) {
		code, _ := doJSON(engine, "POST", "/rankings",
			`{"job_profile": {"min_experience_years": -1}, "candidates": [`+candidateA+`]}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("合法的自定义权重", func(t *testing.T) {
		code, _ := doJSON(engine, "POST", "/rankings",
			`{"job_profile": {}, "candidates": [`+candidateA+`],
			  "weights": {"experience": 20, "technical_skills": 40, "projects": 20, "education": 10, "signal": 10}}`)
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestEndpointsWithoutBackends(t *testing.T) {
	engine := newTestEngine(t, nil)

	code, _ := doJSON(engine, "POST", "/rankings/async",
		`{"job_profile": {}, "candidates": [`+candidateA+`]}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = doJSON(engine, "GET", "/rankings", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = doJSON(engine, "GET", "/rankings/run-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = doJSON(engine, "GET", "/rankings/run-1/report", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestQueryValidation(t *testing.T) {
	engine := newTestEngine(t, nil)

	code, _ := doJSON(engine, "GET", "/rankings/run-1/report?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(engine, "GET", "/rankings/run-1/leaderboard?cursor=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(engine, "GET", "/rankings/run-1/leaderboard?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
