package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/matrixcell"
	"github.com/corpusforge/platform/ent/qajob"
	"github.com/corpusforge/platform/pkg/config"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// JobRegistry is the subset of WorkerPool used by Worker for in-flight job
// registration (enables API-triggered cancellation of a running job).
type JobRegistry interface {
	RegisterJob(jobID int, cancel context.CancelFunc)
	UnregisterJob(jobID int)
}

// Worker is a single queue worker that polls for and processes QAJob rows.
type Worker struct {
	id           string
	workerPoolID string
	client       *ent.Client
	config       *config.QueueConfig
	executor     JobExecutor
	pool         JobRegistry
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  int
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id, workerPoolID string, client *ent.Client, cfg *config.QueueConfig, executor JobExecutor, pool JobRegistry) *Worker {
	return &Worker{
		id:           id,
		workerPoolID: workerPoolID,
		client:       client,
		config:       cfg,
		executor:     executor,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        string(w.status),
		CurrentJobID:  w.currentJobID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "worker_pool_id", w.workerPoolID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a job, and processes it to completion.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	activeCount, err := w.client.QAJob.Query().
		Where(qajob.StatusEQ(qajob.StatusProcessing)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("checking active jobs: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	job, err := w.claimNextJob(ctx)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.ID, "cell_id", job.MatrixCellID, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, 0)

	jobCtx, cancelJob := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancelJob()

	w.pool.RegisterJob(job.ID, cancelJob)
	defer w.pool.UnregisterJob(job.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(jobCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, job.ID)

	result := w.executor.Execute(jobCtx, job)

	if result == nil {
		result = w.synthesizeResult(jobCtx)
	} else if result.Status == "" {
		result = w.synthesizeResultFromError(jobCtx, result)
	}

	cancelHeartbeat()

	if err := w.updateTerminalStatus(context.Background(), job, result); err != nil {
		log.Error("failed to update job terminal status", "error", err)
		return err
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	log.Info("job processing complete", "status", result.Status)
	return nil
}

// synthesizeResult builds a terminal result when the executor returned nil,
// inferring the cause from the job context.
func (w *Worker) synthesizeResult(ctx context.Context) *ExecutionResult {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ExecutionResult{
			Status:       qajob.StatusFailed,
			ErrorMessage: fmt.Sprintf("job timed out after %v", w.config.JobTimeout),
			Err:          ctx.Err(),
		}
	case errors.Is(ctx.Err(), context.Canceled):
		return &ExecutionResult{
			Status:       qajob.StatusFailed,
			ErrorMessage: "job cancelled",
			Err:          ctx.Err(),
		}
	default:
		return &ExecutionResult{
			Status:       qajob.StatusFailed,
			ErrorMessage: "executor returned no result",
		}
	}
}

func (w *Worker) synthesizeResultFromError(ctx context.Context, result *ExecutionResult) *ExecutionResult {
	r := w.synthesizeResult(ctx)
	if result.Err != nil {
		r.Err = result.Err
		r.ErrorMessage = result.Err.Error()
	}
	return r
}

// claimNextJob atomically claims the next queued QAJob using FOR UPDATE SKIP LOCKED.
func (w *Worker) claimNextJob(ctx context.Context) (*ent.QAJob, error) {
	tx, err := w.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	job, err := tx.QAJob.Query().
		Where(qajob.StatusEQ(qajob.StatusQueued)).
		Order(ent.Asc(qajob.FieldCreatedAt)).
		Limit(1).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNoJobsAvailable
		}
		return nil, fmt.Errorf("failed to query queued job: %w", err)
	}

	now := time.Now()
	job, err = job.Update().
		SetStatus(qajob.StatusProcessing).
		SetWorkerID(w.workerPoolID).
		SetStartedAt(now).
		SetHeartbeatAt(now).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	// Reflect the claim on the owning MatrixCell so cell-level reads (list
	// endpoints, matrix progress summaries) see "processing" immediately.
	if err := tx.MatrixCell.UpdateOneID(job.MatrixCellID).
		SetStatus(matrixcell.StatusProcessing).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark cell processing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return job, nil
}

// runHeartbeat periodically updates heartbeat_at for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, jobID int) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.QAJob.UpdateOneID(jobID).
				SetHeartbeatAt(time.Now()).
				Exec(ctx); err != nil {
				slog.Warn("heartbeat update failed", "job_id", jobID, "error", err)
			}
		}
	}
}

// updateTerminalStatus writes the final QAJob status and reflects it onto the
// owning MatrixCell.
func (w *Worker) updateTerminalStatus(ctx context.Context, job *ent.QAJob, result *ExecutionResult) error {
	tx, err := w.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	jobUpdate := tx.QAJob.UpdateOneID(job.ID).
		SetStatus(result.Status).
		SetCompletedAt(now)
	if result.ErrorMessage != "" {
		jobUpdate = jobUpdate.SetErrorMessage(result.ErrorMessage)
	}
	if err := jobUpdate.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	cellUpdate := tx.MatrixCell.UpdateOneID(job.MatrixCellID).
		SetStatus(cellStatusFor(result.Status)).
		SetUpdatedAt(now)
	if result.AnswerSetID != nil {
		cellUpdate = cellUpdate.SetCurrentAnswerSetID(*result.AnswerSetID)
	}
	if err := cellUpdate.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update cell: %w", err)
	}

	return tx.Commit()
}

func cellStatusFor(jobStatus qajob.Status) matrixcell.Status {
	if jobStatus == qajob.StatusCompleted {
		return matrixcell.StatusCompleted
	}
	return matrixcell.StatusFailed
}

// pollInterval returns the poll duration with jitter applied.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, jobID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
