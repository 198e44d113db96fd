package router

import (
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"

	"cv-ranker/internal/api/handler"
	"cv-ranker/internal/api/middleware"
	"cv-ranker/internal/config"
	"cv-ranker/internal/service"
)

func newRouter(serverCfg config.ServerConfig) *server.Hertz {
	h := server.New()
	RegisterRoutes(h, handler.NewRankingHandler(&serverCfg, service.New(nil), nil), &serverCfg)
	return h
}

func TestHealthIsPublic(t *testing.T) {
	h := newRouter(config.ServerConfig{APIKeys: []string{"secret"}})
	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, resp.Header().Get(middleware.HeaderRequestID))
}

func TestAPIKeyRequired(t *testing.T) {
	h := newRouter(config.ServerConfig{APIKeys: []string{"secret"}})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/skills/expand?term=go", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ut.PerformRequest(h.Engine, "GET", "/api/v1/skills/expand?term=go", nil,
		ut.Header{Key: middleware.HeaderAPIKey, Value: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ut.PerformRequest(h.Engine, "GET", "/api/v1/skills/expand?term=go", nil,
		ut.Header{Key: middleware.HeaderAPIKey, Value: "secret"})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newRouter(config.ServerConfig{})
	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil,
		ut.Header{Key: middleware.HeaderRequestID, Value: "req-42"})
	assert.Equal(t, "req-42", resp.Header().Get(middleware.HeaderRequestID))
}

func TestRateLimitPerKey(t *testing.T) {
	// 每分钟 1 次，默认容量为 1
	h := newRouter(config.ServerConfig{APIKeys: []string{"k1", "k2"}, RateLimitQPM: 1})
	call := func(key string) int {
		return ut.PerformRequest(h.Engine, "GET", "/api/v1/skills/expand?term=go", nil,
			ut.Header{Key: middleware.HeaderAPIKey, Value: key}).Code
	}
	assert.Equal(t, http.StatusOK, call("k1"))
	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/skills/expand?term=go", nil,
		ut.Header{Key: middleware.HeaderAPIKey, Value: "k1"})
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, call("k2"))
}
