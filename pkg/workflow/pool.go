package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/workflowexecution"
	"github.com/corpusforge/platform/pkg/config"
	"github.com/corpusforge/platform/pkg/credential"
	"github.com/corpusforge/platform/pkg/executor"
	"github.com/corpusforge/platform/pkg/objectstore"
)

// Pool manages a pool of workflow workers claiming WorkflowExecution rows.
//
// Grounded on pkg/jobqueue.WorkerPool, generalized to the WorkflowExecution
// domain. A separate pool from jobqueue.WorkerPool because the two claim
// different row types (QAJob vs. WorkflowExecution) under different
// capacity limits, even though both share the FOR UPDATE SKIP LOCKED claim
// shape and config.QueueConfig's knobs.
type Pool struct {
	id      string
	client  *ent.Client
	config  *config.QueueConfig
	phases  config.WorkflowPhaseConfig
	backend executor.Backend
	broker  *credential.Broker
	store   objectstore.Store
	image   string

	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	orphanMu         sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// NewPool creates a new workflow-execution pool identified by id (typically
// the hostname or pod name of the replica running it).
func NewPool(id string, client *ent.Client, cfg *config.QueueConfig, phases config.WorkflowPhaseConfig, backend executor.Backend, broker *credential.Broker, store objectstore.Store, image string) *Pool {
	return &Pool{
		id:      id,
		client:  client,
		config:  cfg,
		phases:  phases,
		backend: backend,
		broker:  broker,
		store:   store,
		image:   image,
		workers: make([]*Worker, 0, cfg.WorkerCount),
		stopCh:  make(chan struct{}),
	}
}

// Start spawns worker goroutines and the orphan-detection background task.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *Pool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("workflow pool already started, ignoring duplicate Start call", "pool_id", p.id)
		return nil
	}
	p.started = true

	slog.Info("starting workflow execution pool", "pool_id", p.id, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-workflow-worker-%d", p.id, i)
		worker := NewWorker(workerID, p.id, p.client, p.config, p.phases, p.backend, p.broker, p.store, p.image)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	return nil
}

// Stop signals all workers to stop and waits for the current claim to finish.
func (p *Pool) Stop() {
	slog.Info("stopping workflow execution pool gracefully")
	for _, worker := range p.workers {
		worker.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("workflow execution pool stopped gracefully")
}

// runOrphanDetection periodically scans for executions whose claim went
// stale (no heartbeat), the same pattern pkg/jobqueue uses for QAJob rows.
func (p *Pool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("workflow orphan detection failed", "error", err)
			}
		}
	}
}

func (p *Pool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	orphans, err := p.client.WorkflowExecution.Query().
		Where(
			workflowexecution.StatusEQ(workflowexecution.StatusRunning),
			workflowexecution.HeartbeatAtNotNil(),
			workflowexecution.HeartbeatAtLT(threshold),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("querying orphaned workflow executions: %w", err)
	}

	p.orphanMu.Lock()
	p.lastOrphanScan = time.Now()
	p.orphanMu.Unlock()

	if len(orphans) == 0 {
		return nil
	}

	slog.Warn("detected orphaned workflow executions", "count", len(orphans))

	recovered := 0
	for _, exec := range orphans {
		if err := markExecutionOrphaned(ctx, p.client, exec); err != nil {
			slog.Error("failed to recover orphaned workflow execution", "execution_id", exec.ID, "error", err)
			continue
		}
		recovered++
	}

	p.orphanMu.Lock()
	p.orphansRecovered += recovered
	p.orphanMu.Unlock()

	return nil
}

// CleanupStartupOrphans performs a one-time cleanup of executions owned by
// this pool that were left running when it previously crashed. Call once
// during startup, before the pool begins claiming new work.
func CleanupStartupOrphans(ctx context.Context, client *ent.Client, poolID string) error {
	orphans, err := client.WorkflowExecution.Query().
		Where(
			workflowexecution.StatusEQ(workflowexecution.StatusRunning),
			workflowexecution.WorkerIDEQ(poolID),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("querying startup orphaned workflow executions: %w", err)
	}

	for _, exec := range orphans {
		if err := markExecutionOrphaned(ctx, client, exec); err != nil {
			slog.Error("failed to mark startup workflow orphan", "execution_id", exec.ID, "error", err)
			continue
		}
		slog.Info("startup workflow execution orphan recovered", "execution_id", exec.ID)
	}

	return nil
}

// Health returns the current health status of the pool, mirroring
// pkg/jobqueue.WorkerPool.Health.
func (p *Pool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.client.WorkflowExecution.Query().
		Where(workflowexecution.StatusEQ(workflowexecution.StatusPending)).
		Count(ctx)
	if errQ != nil {
		slog.Error("failed to query workflow queue depth for health check", "pool_id", p.id, "error", errQ)
	}

	activeExecutions, errA := p.client.WorkflowExecution.Query().
		Where(
			workflowexecution.StatusEQ(workflowexecution.StatusRunning),
			workflowexecution.WorkerIDEQ(p.id),
		).
		Count(ctx)
	if errA != nil {
		slog.Error("failed to query active workflow executions for health check", "pool_id", p.id, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeExecutions <= p.config.MaxConcurrentJobs && dbHealthy

	p.orphanMu.Lock()
	lastOrphanScan := p.lastOrphanScan
	orphansRecovered := p.orphansRecovered
	p.orphanMu.Unlock()

	var dbError string
	if !dbHealthy {
		if errQ != nil {
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else if errA != nil {
			dbError = fmt.Sprintf("active executions query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:        isHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		WorkerPoolID:     p.id,
		ActiveWorkers:    activeWorkers,
		TotalWorkers:     len(p.workers),
		ActiveExecutions: activeExecutions,
		MaxConcurrent:    p.config.MaxConcurrentJobs,
		QueueDepth:       queueDepth,
		WorkerStats:      workerStats,
		LastOrphanScan:   lastOrphanScan,
		OrphansRecovered: orphansRecovered,
	}
}

func markExecutionOrphaned(ctx context.Context, client *ent.Client, exec *ent.WorkflowExecution) error {
	lastHeartbeat := "unknown"
	if exec.HeartbeatAt != nil {
		lastHeartbeat = exec.HeartbeatAt.Format(time.RFC3339)
	}
	workerID := "unknown"
	if exec.WorkerID != nil {
		workerID = *exec.WorkerID
	}

	return client.WorkflowExecution.UpdateOneID(exec.ID).
		SetStatus(workflowexecution.StatusFailed).
		SetCompletedAt(time.Now()).
		SetErrorMessage(fmt.Sprintf("orphaned: no heartbeat from worker %s since %s", workerID, lastHeartbeat)).
		Exec(ctx)
}
