package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"entgo.io/ent/dialect/sql"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/executionfile"
	"github.com/corpusforge/platform/ent/workflowexecution"
	"github.com/corpusforge/platform/pkg/config"
	"github.com/corpusforge/platform/pkg/credential"
	"github.com/corpusforge/platform/pkg/executor"
	"github.com/corpusforge/platform/pkg/objectstore"
	"github.com/corpusforge/platform/pkg/storagelayout"
)

// Worker is a single queue worker that polls for and runs WorkflowExecution
// rows through the Launch -> Poll -> Extract -> Cleanup orchestration.
//
// Grounded on pkg/jobqueue.Worker's claim/heartbeat/terminal-status shape,
// generalized from QAJob claiming to WorkflowExecution claiming and wired to
// pkg/executor (C1, the launch/check_status/cleanup backend) and
// pkg/credential (C3, the per-execution ephemeral service account).
type Worker struct {
	id           string
	workerPoolID string
	client       *ent.Client
	config       *config.QueueConfig
	phases       config.WorkflowPhaseConfig
	backend      executor.Backend
	broker       *credential.Broker
	store        objectstore.Store
	image        string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu                 sync.RWMutex
	status             WorkerStatus
	currentExecutionID int
	executionsRun      int
	lastActivity       time.Time
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// NewWorker creates a new workflow-execution worker.
func NewWorker(id, workerPoolID string, client *ent.Client, cfg *config.QueueConfig, phases config.WorkflowPhaseConfig, backend executor.Backend, broker *credential.Broker, store objectstore.Store, image string) *Worker {
	return &Worker{
		id:           id,
		workerPoolID: workerPoolID,
		client:       client,
		config:       cfg,
		phases:       phases,
		backend:      backend,
		broker:       broker,
		store:        store,
		image:        image,
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

// Stop signals the worker to stop and waits for it to finish. Safe to call
// multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "worker_pool_id", w.workerPoolID)
	log.Info("workflow worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("workflow worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, workflow worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoExecutionsAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing workflow execution", "error", err)
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

// pollAndProcess checks capacity, claims an execution, and runs it to completion.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	activeCount, err := w.client.WorkflowExecution.Query().
		Where(workflowexecution.StatusEQ(workflowexecution.StatusRunning)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("checking active workflow executions: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	exec, wf, err := w.claimNextExecution(ctx)
	if err != nil {
		return err
	}

	log := slog.With("execution_id", exec.ID, "workflow_id", exec.WorkflowID, "worker_id", w.id)
	log.Info("workflow execution claimed")

	w.setStatus(WorkerStatusWorking, exec.ID)
	defer w.setStatus(WorkerStatusIdle, 0)

	runCtx, cancelRun := context.WithTimeout(ctx, w.phases.MaxWait+w.phases.LaunchTimeout+w.phases.ExtractTimeout+w.phases.CleanupTimeout)
	defer cancelRun()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(runCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, exec.ID)

	serviceAccountID, plainKey, err := w.broker.Create(runCtx, exec.CompanyID, fmt.Sprintf("workflow-exec-%d", exec.ID))
	if err != nil {
		cancelHeartbeat()
		return w.failExecution(context.Background(), exec, fmt.Errorf("minting service account: %w", err))
	}
	defer func() {
		if err := w.broker.Delete(context.Background(), serviceAccountID, exec.CompanyID); err != nil {
			slog.Warn("failed to revoke workflow execution service account", "execution_id", exec.ID, "service_account_id", serviceAccountID, "error", err)
		}
	}()

	spec := executor.JobSpec{
		ContainerName: fmt.Sprintf("workflow-exec-%d", exec.ID),
		TemplateName:  string(wf.OutputType),
		ImageName:     w.image,
		EnvVars: map[string]string{
			"API_KEY":      plainKey,
			"WORKFLOW_ID":  fmt.Sprintf("%d", wf.ID),
			"EXECUTION_ID": fmt.Sprintf("%d", exec.ID),
		},
		TemplateVars: map[string]interface{}{
			"workflow_name": wf.Name,
			"output_type":   string(wf.OutputType),
		},
		CompanyID: exec.CompanyID,
	}

	result, err := Orchestrate(runCtx, w.backend, spec, PhaseConfig{
		LaunchTimeout:  w.phases.LaunchTimeout,
		StatusTimeout:  w.phases.StatusTimeout,
		ExtractTimeout: w.phases.ExtractTimeout,
		CleanupTimeout: w.phases.CleanupTimeout,
		PollInterval:   w.phases.PollInterval,
		MaxWait:        w.phases.MaxWait,
	}, w.extract(exec, wf))
	cancelHeartbeat()

	if err != nil {
		return w.failExecution(context.Background(), exec, err)
	}

	extracted, _ := result.(extractResult)
	if err := w.completeExecution(context.Background(), exec, extracted); err != nil {
		log.Error("failed to update execution terminal status", "error", err)
		return err
	}

	w.mu.Lock()
	w.executionsRun++
	w.mu.Unlock()

	log.Info("workflow execution complete")
	return nil
}

// extract builds the Extractor for one claimed execution: it reads whatever
// ExecutionFile rows of type "output" the job posted back through the
// platform API (authenticated with the service account minted above) and
// writes a manifest summarizing them to object storage. Idempotent: a retried
// extract overwrites the same manifest key with the same content.
func (w *Worker) extract(exec *ent.WorkflowExecution, wf *ent.Workflow) Extractor {
	return func(ctx context.Context, _ executor.ExecutionInfo) (interface{}, error) {
		files, err := w.client.ExecutionFile.Query().
			Where(
				executionfile.ExecutionID(exec.ID),
				executionfile.FileTypeEQ(executionfile.FileTypeOutput),
			).
			All(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading output files for execution %d: %w", exec.ID, err)
		}

		entries := make([]ManifestEntry, 0, len(files))
		var total int64
		for _, f := range files {
			mime := ""
			if f.MimeType != nil {
				mime = *f.MimeType
			}
			entries = append(entries, ManifestEntry{
				Name:        f.Name,
				StoragePath: f.StoragePath,
				FileSize:    f.FileSize,
				MimeType:    mime,
			})
			total += f.FileSize
		}

		manifest, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("marshaling execution manifest: %w", err)
		}
		manifestKey := storagelayout.WorkflowExecutionPrefix(exec.CompanyID, wf.ID, exec.ID) + "manifest.json"
		if err := w.store.Put(ctx, manifestKey, manifest); err != nil {
			return nil, fmt.Errorf("uploading execution manifest: %w", err)
		}

		return extractResult{Files: entries, OutputSizeBytes: total}, nil
	}
}

// claimNextExecution atomically claims the oldest pending WorkflowExecution
// using FOR UPDATE SKIP LOCKED, returning it alongside its owning Workflow.
func (w *Worker) claimNextExecution(ctx context.Context) (*ent.WorkflowExecution, *ent.Workflow, error) {
	tx, err := w.client.Tx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exec, err := tx.WorkflowExecution.Query().
		Where(workflowexecution.StatusEQ(workflowexecution.StatusPending)).
		Order(ent.Asc(workflowexecution.FieldStartedAt)).
		Limit(1).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil, ErrNoExecutionsAvailable
		}
		return nil, nil, fmt.Errorf("failed to query pending execution: %w", err)
	}

	now := time.Now()
	exec, err = exec.Update().
		SetStatus(workflowexecution.StatusRunning).
		SetWorkerID(w.workerPoolID).
		SetStartedAt(now).
		SetHeartbeatAt(now).
		Save(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to claim execution: %w", err)
	}

	wf, err := tx.Workflow.Get(ctx, exec.WorkflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading workflow %d: %w", exec.WorkflowID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return exec, wf, nil
}

// runHeartbeat periodically updates heartbeat_at for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, executionID int) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.WorkflowExecution.UpdateOneID(executionID).
				SetHeartbeatAt(time.Now()).
				Exec(ctx); err != nil {
				slog.Warn("workflow execution heartbeat update failed", "execution_id", executionID, "error", err)
			}
		}
	}
}

// completeExecution writes the terminal "completed" status and output size.
func (w *Worker) completeExecution(ctx context.Context, exec *ent.WorkflowExecution, result extractResult) error {
	now := time.Now()
	return w.client.WorkflowExecution.UpdateOneID(exec.ID).
		SetStatus(workflowexecution.StatusCompleted).
		SetCompletedAt(now).
		SetOutputSizeBytes(result.OutputSizeBytes).
		Exec(ctx)
}

// failExecution writes the terminal "failed" status and error message, and
// always returns the original error so the caller's pollAndProcess surfaces
// it for logging.
func (w *Worker) failExecution(ctx context.Context, exec *ent.WorkflowExecution, cause error) error {
	now := time.Now()
	if updateErr := w.client.WorkflowExecution.UpdateOneID(exec.ID).
		SetStatus(workflowexecution.StatusFailed).
		SetCompletedAt(now).
		SetErrorMessage(cause.Error()).
		Exec(ctx); updateErr != nil {
		slog.Error("failed to mark workflow execution failed", "execution_id", exec.ID, "error", updateErr)
	}
	return cause
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

func (w *Worker) setStatus(status WorkerStatus, executionID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentExecutionID = executionID
	w.lastActivity = time.Now()
}

// Health returns a snapshot of the worker's current status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:               w.id,
		Status:           string(w.status),
		CurrentExecution: w.currentExecutionID,
		ExecutionsRun:    w.executionsRun,
		LastActivity:     w.lastActivity,
	}
}
