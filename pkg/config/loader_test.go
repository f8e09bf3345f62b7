package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Executor.Backend, cfg.Executor.Backend)
	assert.Equal(t, Default().HybridWeights, cfg.HybridWeights)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
queue:
  worker_count: 10
executor:
  backend: cluster
  image: "{{.TEST_EXECUTOR_IMAGE}}"
  cluster_api_url: https://cluster.internal/api
hybrid_weights:
  keyword: 0.3
  vector: 0.7
llm:
  api_key: "{{.TEST_LLM_API_KEY}}"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TEST_EXECUTOR_IMAGE", "corpusforge/qa-executor:v2")
	t.Setenv("TEST_LLM_API_KEY", "placeholder")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Queue.WorkerCount)
	// Unset queue fields keep their defaults.
	assert.Equal(t, DefaultQueueConfig().HeartbeatInterval, cfg.Queue.HeartbeatInterval)

	assert.Equal(t, ExecutorBackendCluster, cfg.Executor.Backend)
	assert.Equal(t, "corpusforge/qa-executor:v2", cfg.Executor.Image)
	assert.Equal(t, "https://cluster.internal/api", cfg.Executor.ClusterAPIURL)

	assert.InDelta(t, 0.3, cfg.HybridWeights.Keyword, 0.0001)
	assert.InDelta(t, 0.7, cfg.HybridWeights.Vector, 0.0001)

	// Untouched sections still carry defaults.
	assert.Equal(t, DefaultTierLimits(), cfg.TierLimits)
}

func TestLoadInvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queue: [this is not a mapping"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidExecutorBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executor:\n  backend: not-a-backend\n  image: x\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
