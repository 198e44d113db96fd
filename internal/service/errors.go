package service

import (
	"context"
	"errors"
	"fmt"
)

// 基础错误类型
var (
	ErrInvalidRequest     = errors.New("排序请求参数无效")
	ErrRankingInProgress  = errors.New("相同的排序请求正在处理中")
	ErrRunNotFound        = errors.New("排序运行不存在")
	ErrBackendUnavailable = errors.New("所需的存储组件未启用")
	ErrScoringFailed      = errors.New("候选人评分失败")
	ErrPersistFailed      = errors.New("保存排序结果失败")
	ErrPublishFailed      = errors.New("发布排序请求失败")
)

// RankingError 带运行上下文的错误
type RankingError struct {
	RunUUID string
	Op      string
	BaseErr error
	Detail  string
}

func (e *RankingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %s", e.BaseErr, e.Op, e.RunUUID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.RunUUID)
}

func (e *RankingError) Unwrap() error {
	return e.BaseErr
}

// Is 支持 errors.Is 比较
func (e *RankingError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func newError(op, runUUID string, base error, detail string) error {
	return &RankingError{RunUUID: runUUID, Op: op, BaseErr: base, Detail: detail}
}

func newInvalidError(detail string) error {
	return newError("validate", "", ErrInvalidRequest, detail)
}

// Retryable 暂时性错误，消费者应重新入队
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrRankingInProgress),
		errors.Is(err, ErrPersistFailed),
		errors.Is(err, ErrPublishFailed),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
