package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "无法写入临时配置文件")
	return path
}

// TestLoadConfigKeepsDefaults 未出现的字段保留默认值
func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
scoring:
  cosine_threshold: 0.7
  weights:
    signal: 0
    experience: 45
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 0.7, cfg.Scoring.CosineThreshold)
	assert.Equal(t, 0.75, cfg.Scoring.SubstringSimilarity, "未配置的字段应保留默认值")
	assert.Equal(t, 2026, cfg.Scoring.ReferenceYear)
	assert.Equal(t, "q.ranking_requests", cfg.RabbitMQ.RankingRequestQueue)

	require.NotNil(t, cfg.Scoring.Weights.Signal)
	assert.Equal(t, 0.0, *cfg.Scoring.Weights.Signal)
	require.NotNil(t, cfg.Scoring.Weights.Experience)
	assert.Equal(t, 45.0, *cfg.Scoring.Weights.Experience)
	assert.Nil(t, cfg.Scoring.Weights.Projects, "未设置的权重保持 nil")
}

func TestLoadConfigRejectsInvalidScoring(t *testing.T) {
	cases := map[string]string{
		"阈值越界":     "scoring:\n  cosine_threshold: 1.5\n",
		"分档倒置":     "scoring:\n  excellent_threshold: 50\n  good_threshold: 70\n",
		"负数worker": "scoring:\n  workers: -1\n",
		"采样率越界":    "tracing:\n  sample_ratio: 2\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unterminated\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIKeys, " key-a , ,key-b")
	t.Setenv(EnvMySQLPassword, "mysql-secret")
	t.Setenv(EnvRedisPassword, "redis-secret")

	cfg, err := LoadConfig(writeConfig(t, "mysql:\n  password: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Server.APIKeys)
	assert.Equal(t, "mysql-secret", cfg.MySQL.Password)
	assert.Equal(t, "redis-secret", cfg.Redis.Password)

	fileOnly, err := LoadConfigFromFileOnly(writeConfig(t, "mysql:\n  password: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", fileOnly.MySQL.Password, "仅文件模式不读取环境变量")
	assert.Empty(t, fileOnly.Server.APIKeys)
}

func TestDefaultConfigDisablesBackends(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.MySQL.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.False(t, cfg.MinIO.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	cfg, err := LoadConfigFromFileOnly(path)
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.Scoring.CosineThreshold, cfg.Scoring.CosineThreshold)
	assert.Equal(t, def.Scoring.ReferenceYear, cfg.Scoring.ReferenceYear)
	assert.Equal(t, def.RabbitMQ.RankingExchange, cfg.RabbitMQ.RankingExchange)
	assert.Equal(t, def.MinIO.ReportsBucket, cfg.MinIO.ReportsBucket)

	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("3s", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("", time.Minute))
	assert.Equal(t, time.Minute, GetDuration("soon", time.Minute))
}
