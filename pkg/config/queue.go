package config

import (
	"fmt"
	"time"
)

// QueueConfig contains worker-pool configuration for the durable claim-based
// processing substrate (Matrix cell / QA-job / workflow-execution processing).
// These values control how claimable rows are polled, claimed, heartbeated, and
// reclaimed by the worker pool.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and claims rows.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentJobs is the global limit of concurrently processing rows
	// across ALL replicas/pods, enforced by a database COUNT(*) check at claim
	// time.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// PollInterval is the base interval between claim attempts when idle.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval to spread
	// out claim attempts across workers. Actual interval: PollInterval ± jitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// HeartbeatInterval is how often a worker updates heartbeat_at on its
	// currently-claimed row while processing.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// JobTimeout is the maximum time a single claimed row may be processed
	// before the worker abandons it and marks it failed.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// GracefulShutdownTimeout is the max time to wait for in-flight claims to
	// finish during shutdown. Should be >= JobTimeout.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan for orphaned claims (rows
	// stuck in a processing state with a stale heartbeat).
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a claimed row can go without a heartbeat
	// update before the orphan sweep reclaims it.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`
}

// DefaultQueueConfig returns the built-in worker-pool defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentJobs:       5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		HeartbeatInterval:       30 * time.Second,
		JobTimeout:              15 * time.Minute,
		GracefulShutdownTimeout: 15 * time.Minute,
		OrphanDetectionInterval: 5 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
	}
}

// Validate checks the queue configuration for internal consistency.
func (q *QueueConfig) Validate() error {
	if q == nil {
		return fmt.Errorf("queue config is required")
	}
	if q.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be >= 1, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max_concurrent_jobs must be >= 1, got %d", q.MaxConcurrentJobs)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must not be negative")
	}
	if q.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if q.JobTimeout <= 0 {
		return fmt.Errorf("job_timeout must be positive")
	}
	if q.OrphanThreshold <= q.HeartbeatInterval {
		return fmt.Errorf("orphan_threshold (%s) must exceed heartbeat_interval (%s)", q.OrphanThreshold, q.HeartbeatInterval)
	}
	return nil
}
