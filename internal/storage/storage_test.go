package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"cv-ranker/internal/config"
	"cv-ranker/internal/types"
)

func sampleResult() *types.RankedResult {
	return &types.RankedResult{
		Candidates: []types.CandidateScore{
			{CandidateID: "c-2", CandidateName: "Bob", Rank: 1, TotalScore: 82, Bucket: types.BucketExcellent},
			{CandidateID: "c-1", CandidateName: "Alice", Rank: 2, TotalScore: 82, Bucket: types.BucketExcellent},
			{CandidateName: "Anon", Rank: 3, TotalScore: 40, Bucket: types.BucketFair},
		},
		ExcellentCount: 2,
		FairCount:      1,
	}
}

// TestLeaderboardMembersKeepRankOrder 同分候选人也按名次排列
func TestLeaderboardMembersKeepRankOrder(t *testing.T) {
	members, err := leaderboardMembers(sampleResult())
	require.NoError(t, err)
	require.Len(t, members, 3)

	for i := 1; i < len(members); i++ {
		assert.Greater(t, members[i-1].Score, members[i].Score, "ZSET 分数必须严格递减")
	}

	var last LeaderboardEntry
	require.NoError(t, json.Unmarshal([]byte(members[2].Member.(string)), &last))
	assert.Equal(t, "rank-3", last.CandidateID, "无 ID 的候选人使用名次作为标识")
	assert.Equal(t, types.BucketFair, last.Bucket)
}

func TestReportObjectKey(t *testing.T) {
	assert.Equal(t, "runs/r-1/report.json", ReportObjectKey("r-1", ReportFormatJSON))
	assert.Equal(t, "runs/r-1/report.txt", ReportObjectKey("r-1", ReportFormatText))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel(1))
	assert.Equal(t, logger.Error, gormLogLevel(2))
	assert.Equal(t, logger.Warn, gormLogLevel(3))
	assert.Equal(t, logger.Info, gormLogLevel(0))
}

func TestNewStorageAllDisabled(t *testing.T) {
	s, err := NewStorage(context.Background(), config.Default())
	require.NoError(t, err, "全部组件未启用时应得到空的存储管理器")
	assert.Nil(t, s.MySQL)
	assert.Nil(t, s.Redis)
	assert.Empty(t, s.Health(context.Background()))
	s.Close()

	_, err = NewStorage(context.Background(), nil)
	assert.Error(t, err)
}

// fakeS3 只实现报告归档用到的几个 S3 接口
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	if p == f.bucket || p == f.bucket+"/" {
		w.WriteHeader(http.StatusOK)
		return
	}
	key := strings.TrimPrefix(p, f.bucket+"/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.Header().Set("ETag", `"etag-1"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>`+key+`</Key><BucketName>`+f.bucket+`</BucketName><Resource>/`+p+`</Resource><RequestId>1</RequestId><HostId>1</HostId></Error>`)
			}
			return
		}
		w.Header().Set("ETag", `"etag-1"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestMinIOReportRoundTrip(t *testing.T) {
	fake := &fakeS3{bucket: "reports", objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	m, err := NewMinIO(&config.MinIOConfig{
		Endpoint:      strings.TrimPrefix(srv.URL, "http://"),
		Location:      "us-east-1",
		ReportsBucket: "reports",
	})
	require.NoError(t, err)

	payload := []byte(`{"candidates":[]}`)
	key, err := m.PutRankingReport(context.Background(), "run-1", ReportFormatJSON, payload)
	require.NoError(t, err)
	assert.Equal(t, "runs/run-1/report.json", key)
	assert.Equal(t, payload, fake.objects[key])

	got, err := m.GetRankingReport(context.Background(), "run-1", ReportFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = m.GetRankingReport(context.Background(), "missing", ReportFormatJSON)
	assert.ErrorIs(t, err, ErrNotFound)
}
