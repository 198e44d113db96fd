package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-ranker/internal/config"
	"cv-ranker/internal/storage/models"
)

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage("run-1", "ranking.completed", "ex", "rk", map[string]int{"count": 3})
	require.NoError(t, err)
	assert.Equal(t, models.OutboxStatusPending, msg.Status)
	assert.Equal(t, "run-1", msg.AggregateID)
	assert.JSONEq(t, `{"count":3}`, msg.Payload)

	_, err = NewMessage("run-1", "bad", "ex", "rk", make(chan int))
	assert.Error(t, err)
}

func TestNewMessageRelayConfig(t *testing.T) {
	r := NewMessageRelay(nil, nil, nil)
	assert.Equal(t, defaultPollingInterval, r.pollingInterval)
	assert.Equal(t, defaultBatchSize, r.batchSize)

	r = NewMessageRelay(nil, nil, &config.OutboxConfig{PollInterval: "250ms", BatchSize: 50, MaxRetries: 2})
	assert.Equal(t, 250*time.Millisecond, r.pollingInterval)
	assert.Equal(t, 50, r.batchSize)
	assert.Equal(t, 2, r.maxRetries)

	// 非法的间隔保留默认值
	r = NewMessageRelay(nil, nil, &config.OutboxConfig{PollInterval: "soon"})
	assert.Equal(t, defaultPollingInterval, r.pollingInterval)
}

func TestApplyPublishResult(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &models.OutboxMessage{Status: models.OutboxStatusPending}

	applyPublishResult(msg, errors.New("broker down"), 2, now)
	assert.Equal(t, models.OutboxStatusPending, msg.Status, "未达上限继续重试")
	assert.Equal(t, 1, msg.RetryCount)
	assert.Equal(t, "broker down", msg.ErrorMessage)

	applyPublishResult(msg, errors.New("broker down"), 2, now)
	assert.Equal(t, models.OutboxStatusFailed, msg.Status)

	ok := &models.OutboxMessage{Status: models.OutboxStatusPending, ErrorMessage: "old"}
	applyPublishResult(ok, nil, 2, now)
	assert.Equal(t, models.OutboxStatusSent, ok.Status)
	assert.Empty(t, ok.ErrorMessage)
	require.NotNil(t, ok.ProcessedAt)
	assert.Equal(t, now, *ok.ProcessedAt)
}

func TestStopIsIdempotent(t *testing.T) {
	r := NewMessageRelay(nil, nil, &config.OutboxConfig{PollInterval: "1h"})
	r.Start()
	r.Stop()
	r.Stop()
}
