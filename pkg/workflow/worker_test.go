package workflow

import (
	"testing"
	"time"

	"github.com/corpusforge/platform/pkg/config"
	"github.com/stretchr/testify/assert"
)

func testQueueConfig() *config.QueueConfig {
	cfg := config.DefaultQueueConfig()
	cfg.PollInterval = 1 * time.Second
	cfg.PollIntervalJitter = 500 * time.Millisecond
	return cfg
}

func testPhaseConfig() config.WorkflowPhaseConfig {
	return config.WorkflowPhaseConfig{
		LaunchTimeout:  time.Second,
		StatusTimeout:  time.Second,
		ExtractTimeout: time.Second,
		CleanupTimeout: time.Second,
		PollInterval:   10 * time.Millisecond,
		MaxWait:        time.Second,
	}
}

func TestWorkerPollInterval(t *testing.T) {
	cfg := testQueueConfig()
	w := NewWorker("test-worker", "test-pool", nil, cfg, testPhaseConfig(), nil, nil, nil, "")

	for i := 0; i < 100; i++ {
		d := w.pollInterval()
		assert.GreaterOrEqual(t, d, 500*time.Millisecond, "poll interval below minimum")
		assert.LessOrEqual(t, d, 1500*time.Millisecond, "poll interval above maximum")
	}
}

func TestWorkerPollIntervalNoJitter(t *testing.T) {
	cfg := testQueueConfig()
	cfg.PollIntervalJitter = 0
	w := NewWorker("test-worker", "test-pool", nil, cfg, testPhaseConfig(), nil, nil, nil, "")

	for i := 0; i < 10; i++ {
		d := w.pollInterval()
		assert.Equal(t, 1*time.Second, d, "poll interval should equal base when jitter is 0")
	}
}

func TestWorkerHealth(t *testing.T) {
	cfg := testQueueConfig()
	w := NewWorker("worker-1", "pool-1", nil, cfg, testPhaseConfig(), nil, nil, nil, "")

	h := w.Health()
	assert.Equal(t, "worker-1", h.ID)
	assert.Equal(t, string(WorkerStatusIdle), h.Status)
	assert.Equal(t, 0, h.CurrentExecution)
	assert.Equal(t, 0, h.ExecutionsRun)

	w.setStatus(WorkerStatusWorking, 42)
	h = w.Health()
	assert.Equal(t, string(WorkerStatusWorking), h.Status)
	assert.Equal(t, 42, h.CurrentExecution)

	w.setStatus(WorkerStatusIdle, 0)
	h = w.Health()
	assert.Equal(t, string(WorkerStatusIdle), h.Status)
	assert.Equal(t, 0, h.CurrentExecution)
}
