package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-ranker/internal/config"
	"cv-ranker/internal/service"
	"cv-ranker/internal/storage"
	"cv-ranker/internal/types"
)

type fakeRunner struct {
	errs   []error // 依次返回，用完后返回 nil
	calls  []service.RankRequest
	failed map[string]error
}

func (f *fakeRunner) Rank(_ context.Context, req service.RankRequest) (*service.RankOutcome, error) {
	f.calls = append(f.calls, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &service.RankOutcome{RunUUID: req.RunUUID, Result: &types.RankedResult{}}, nil
}

func (f *fakeRunner) MarkFailed(_ context.Context, runUUID string, cause error) {
	if f.failed == nil {
		f.failed = map[string]error{}
	}
	f.failed[runUUID] = cause
}

type fakeSource struct {
	started int
	stopped int
	failAt  int
}

func (f *fakeSource) StartConsumer(_ context.Context, _ string, _ int, _ storage.DeliveryHandler) (func(), error) {
	f.started++
	if f.failAt > 0 && f.started == f.failAt {
		return nil, errors.New("channel closed")
	}
	return func() { f.stopped++ }, nil
}

func testConfig() *config.RabbitMQConfig {
	return &config.RabbitMQConfig{
		RankingRequestQueue: "q.ranking_requests",
		PrefetchCount:       2,
		ConsumerWorkers:     2,
		RetryInterval:       "1ms",
		MaxRetries:          2,
	}
}

func requestBody(t *testing.T, runUUID string) []byte {
	t.Helper()
	var cands []types.CandidateRecord
	require.NoError(t, json.Unmarshal([]byte(`[{"id": "x", "skills": ["go"]}]`), &cands))
	raw, err := json.Marshal(storage.RankingRequestMessage{
		RequestID:  "req-1",
		RunUUID:    runUUID,
		Job:        types.JobProfile{RequiredSkills: types.StringList{"Go"}},
		Candidates: cands,
	})
	require.NoError(t, err)
	return raw
}

func TestHandleSuccess(t *testing.T) {
	runner := &fakeRunner{}
	c := NewRankingConsumer(runner, &fakeSource{}, testConfig())

	action := c.Handle(context.Background(), requestBody(t, "run-1"), false)
	assert.Equal(t, storage.Ack, action)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "run-1", runner.calls[0].RunUUID)
	assert.Len(t, runner.calls[0].Candidates, 1)
}

func TestHandleMalformed(t *testing.T) {
	runner := &fakeRunner{}
	c := NewRankingConsumer(runner, &fakeSource{}, testConfig())

	assert.Equal(t, storage.Reject, c.Handle(context.Background(), []byte("not json"), false))
	assert.Equal(t, storage.Reject, c.Handle(context.Background(), []byte(`{"job": {}}`), false), "缺少 run_uuid")
	assert.Empty(t, runner.calls)
}

func TestHandleRetriesTransientErrors(t *testing.T) {
	inProgress := &service.RankingError{Op: "lock", BaseErr: service.ErrRankingInProgress}
	runner := &fakeRunner{errs: []error{inProgress, nil}}
	c := NewRankingConsumer(runner, &fakeSource{}, testConfig())
	body := requestBody(t, "run-2")

	assert.Equal(t, storage.Requeue, c.Handle(context.Background(), body, false))
	assert.Equal(t, storage.Ack, c.Handle(context.Background(), body, true))
	assert.Empty(t, c.attempts, "成功后清除计数")
	assert.Empty(t, runner.failed)
}

func TestHandleGivesUpAfterMaxRetries(t *testing.T) {
	persist := fmt.Errorf("wrap: %w", &service.RankingError{Op: "persist", BaseErr: service.ErrPersistFailed})
	runner := &fakeRunner{errs: []error{persist, persist, persist}}
	c := NewRankingConsumer(runner, &fakeSource{}, testConfig())
	body := requestBody(t, "run-3")

	assert.Equal(t, storage.Requeue, c.Handle(context.Background(), body, false))
	assert.Equal(t, storage.Reject, c.Handle(context.Background(), body, true))
	require.Contains(t, runner.failed, "run-3")
	assert.ErrorIs(t, runner.failed["run-3"], service.ErrPersistFailed)
}

func TestHandlePermanentError(t *testing.T) {
	runner := &fakeRunner{errs: []error{&service.RankingError{Op: "validate", BaseErr: service.ErrInvalidRequest}}}
	c := NewRankingConsumer(runner, &fakeSource{}, testConfig())

	assert.Equal(t, storage.Reject, c.Handle(context.Background(), requestBody(t, "run-4"), false))
	assert.Contains(t, runner.failed, "run-4")
}

func TestHandleRequeuesOnShutdown(t *testing.T) {
	runner := &fakeRunner{errs: []error{context.Canceled}}
	c := NewRankingConsumer(runner, &fakeSource{}, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, storage.Requeue, c.Handle(ctx, requestBody(t, "run-5"), false))
	assert.Empty(t, runner.failed)
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{}
	c := NewRankingConsumer(&fakeRunner{}, src, testConfig())
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 2, src.started)
	c.Stop()
	assert.Equal(t, 2, src.stopped)
	c.Stop()
	assert.Equal(t, 2, src.stopped)

	// 中途失败时停止已启动的消费者
	src = &fakeSource{failAt: 2}
	c = NewRankingConsumer(&fakeRunner{}, src, testConfig())
	assert.Error(t, c.Start(context.Background()))
	assert.Equal(t, 1, src.stopped)
}
