package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultQueueConfig(t *testing.T) {
	cfg := DefaultQueueConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, 5, cfg.MaxConcurrentJobs)
	assert.Equal(t, 1*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Greater(t, cfg.OrphanThreshold, cfg.HeartbeatInterval)
}

func TestValidateQueue(t *testing.T) {
	valid := DefaultQueueConfig()

	tests := []struct {
		name    string
		mutate  func(*QueueConfig)
		wantErr string
	}{
		{
			name:    "nil queue",
			mutate:  nil,
			wantErr: "queue config is required",
		},
		{
			name:    "zero worker count",
			mutate:  func(c *QueueConfig) { c.WorkerCount = 0 },
			wantErr: "worker_count must be >= 1",
		},
		{
			name:    "zero max concurrent jobs",
			mutate:  func(c *QueueConfig) { c.MaxConcurrentJobs = 0 },
			wantErr: "max_concurrent_jobs must be >= 1",
		},
		{
			name:    "non-positive poll interval",
			mutate:  func(c *QueueConfig) { c.PollInterval = 0 },
			wantErr: "poll_interval must be positive",
		},
		{
			name:    "negative jitter",
			mutate:  func(c *QueueConfig) { c.PollIntervalJitter = -1 * time.Second },
			wantErr: "poll_interval_jitter must not be negative",
		},
		{
			name:    "non-positive heartbeat",
			mutate:  func(c *QueueConfig) { c.HeartbeatInterval = 0 },
			wantErr: "heartbeat_interval must be positive",
		},
		{
			name:    "non-positive job timeout",
			mutate:  func(c *QueueConfig) { c.JobTimeout = 0 },
			wantErr: "job_timeout must be positive",
		},
		{
			name: "orphan threshold not greater than heartbeat",
			mutate: func(c *QueueConfig) {
				c.HeartbeatInterval = 1 * time.Minute
				c.OrphanThreshold = 1 * time.Minute
			},
			wantErr: "must exceed heartbeat_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "nil queue" {
				var q *QueueConfig
				err := q.Validate()
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			cfg := *valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
