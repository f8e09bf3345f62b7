// Package jobqueue provides the database-claimed worker pool that processes
// QAJob rows (matrix-cell QA execution, component C5/C8 of the platform).
//
// Grounded on the teacher's pkg/queue package: the same FOR UPDATE SKIP LOCKED
// claim, heartbeat goroutine, orphan sweep and graceful-shutdown shape, adapted
// from AlertSession claiming to QAJob claiming.
package jobqueue

import (
	"context"
	"errors"
	"time"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/qajob"
)

// Sentinel errors for claim attempts.
var (
	// ErrNoJobsAvailable indicates no queued QAJob rows are claimable.
	ErrNoJobsAvailable = errors.New("no jobs available")

	// ErrAtCapacity indicates the global concurrent-job limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// JobExecutor processes a single claimed QAJob to completion.
//
// The executor owns the cell's QA lifecycle: reserving quota, choosing the
// local or agentic prompt, calling the LLM, validating grounding, and
// persisting the resulting AnswerSet. It writes AnswerSet/Answer/Citation rows itself; the worker only
// handles claiming, heartbeat, and the QAJob/MatrixCell terminal status update.
type JobExecutor interface {
	Execute(ctx context.Context, job *ent.QAJob) *ExecutionResult
}

// ExecutionResult carries the terminal state of a QAJob execution.
type ExecutionResult struct {
	Status       qajob.Status // completed or failed
	AnswerSetID  *int         // set when an AnswerSet was produced
	ErrorMessage string       // populated when Status is failed
	Err          error
}

// PoolHealth reports aggregate health for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	WorkerPoolID     string         `json:"worker_pool_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveJobs       int            `json:"active_jobs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth reports health for a single worker goroutine.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"` // "idle" or "working"
	CurrentJobID  int       `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
