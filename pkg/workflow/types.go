package workflow

import (
	"errors"
	"time"
)

// Sentinel errors for claim attempts, mirroring pkg/jobqueue's vocabulary.
var (
	// ErrNoExecutionsAvailable indicates no pending WorkflowExecution rows
	// are claimable.
	ErrNoExecutionsAvailable = errors.New("no workflow executions available")

	// ErrAtCapacity indicates the global concurrent-execution limit has been
	// reached.
	ErrAtCapacity = errors.New("at capacity")
)

// ManifestEntry describes one output file in a completed execution's
// manifest, mirroring the ExecutionFile row it was built from.
type ManifestEntry struct {
	Name        string `json:"name"`
	StoragePath string `json:"storage_path"`
	FileSize    int64  `json:"file_size"`
	MimeType    string `json:"mime_type,omitempty"`
}

// extractResult is what Extractor returns for a WorkflowExecution: the
// manifest contents and the summed output size recorded on the execution row.
type extractResult struct {
	Files           []ManifestEntry
	OutputSizeBytes int64
}

// PoolHealth reports aggregate health for the workflow-execution pool,
// mirroring pkg/jobqueue.PoolHealth.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	WorkerPoolID     string         `json:"worker_pool_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveExecutions int            `json:"active_executions"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth reports health for a single workflow worker goroutine,
// mirroring pkg/jobqueue.WorkerHealth.
type WorkerHealth struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"` // "idle" or "working"
	CurrentExecution int       `json:"current_execution_id,omitempty"`
	ExecutionsRun    int       `json:"executions_run"`
	LastActivity     time.Time `json:"last_activity"`
}
