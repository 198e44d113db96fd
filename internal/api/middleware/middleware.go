// Package middleware HTTP 中间件：请求 ID、访问日志、API Key 校验与限流
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"

	appLogger "cv-ranker/internal/logger"
	"cv-ranker/pkg/ratelimit"
)

const (
	// HeaderRequestID 请求 ID 头
	HeaderRequestID = "X-Request-ID"
	// HeaderAPIKey API Key 头
	HeaderAPIKey = "X-API-Key"

	// APIKeyContextKey 校验通过的 API Key 在请求上下文中的键
	APIKeyContextKey = "api_key"
	requestIDKey     = "request_id"
)

var errInvalidAPIKey = errors.New("无效的 API Key")

// RequestID 沿用调用方的请求 ID，没有时生成一个，并挂到日志上下文
func RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set(requestIDKey, id)
		ctx.Response.Header.Set(HeaderRequestID, id)

		l := appLogger.Ctx(c).With().Str("request_id", id).Logger()
		ctx.Next(l.WithContext(c))
	}
}

// GetRequestID 当前请求的 ID
func GetRequestID(ctx *app.RequestContext) string {
	return ctx.GetString(requestIDKey)
}

// AccessLog 记录请求与响应
func AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		hlog.CtxInfof(c, "%s %s status=%d cost=%s request_id=%s",
			string(ctx.Method()), string(ctx.Path()), ctx.Response.StatusCode(), time.Since(start), GetRequestID(ctx))
	}
}

// APIKeyAuth 校验 X-API-Key；keys 为空时不启用
func APIKeyAuth(keys []string) app.HandlerFunc {
	if len(keys) == 0 {
		return func(c context.Context, ctx *app.RequestContext) { ctx.Next(c) }
	}
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed = append(allowed, []byte(k))
		}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAPIKey, ""),
		keyauth.WithContextKey(APIKeyContextKey),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			for _, k := range allowed {
				if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": errInvalidAPIKey.Error()})
		}),
	)
}

// RateLimit 按 API Key（未启用鉴权时按客户端 IP）限流，超限返回 429
func RateLimit(qpm int) app.HandlerFunc {
	if qpm <= 0 {
		return func(c context.Context, ctx *app.RequestContext) { ctx.Next(c) }
	}
	limiter := ratelimit.NewLimiter(qpm, 0)
	return func(c context.Context, ctx *app.RequestContext) {
		key := ctx.GetString(APIKeyContextKey)
		if key == "" {
			key = ctx.ClientIP()
		}
		ok, wait := limiter.Reserve(key)
		if !ok {
			ctx.Response.Header.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": "请求过于频繁，请稍后重试"})
			return
		}
		ctx.Next(c)
	}
}
