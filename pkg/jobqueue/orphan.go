package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/matrixcell"
	"github.com/corpusforge/platform/ent/qajob"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for orphaned jobs. All pool replicas
// run this independently — operations are idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
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
				slog.Error("orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds processing jobs with a stale heartbeat and
// reclaims them: marks the job failed and its owning cell failed.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	orphans, err := p.client.QAJob.Query().
		Where(
			qajob.StatusEQ(qajob.StatusProcessing),
			qajob.HeartbeatAtNotNil(),
			qajob.HeartbeatAtLT(threshold),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to query orphaned jobs: %w", err)
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("detected orphaned jobs", "count", len(orphans))

	recovered, failed := 0, 0
	for _, job := range orphans {
		if err := p.recoverOrphanedJob(ctx, job); err != nil {
			slog.Error("failed to recover orphaned job", "job_id", job.ID, "error", err)
			failed++
			continue
		}
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	if failed > 0 {
		slog.Warn("orphan recovery completed with failures", "total", len(orphans), "recovered", recovered, "failed", failed)
	}

	return nil
}

// recoverOrphanedJob marks a single orphaned job as failed and its cell as
// failed, so a caller can re-enqueue a fresh QAJob for the same cell.
func (p *WorkerPool) recoverOrphanedJob(ctx context.Context, job *ent.QAJob) error {
	lastHeartbeat := "unknown"
	if job.HeartbeatAt != nil {
		lastHeartbeat = job.HeartbeatAt.Format(time.RFC3339)
	}
	workerID := "unknown"
	if job.WorkerID != nil {
		workerID = *job.WorkerID
	}

	errMsg := fmt.Sprintf("orphaned: no heartbeat from worker %s since %s", workerID, lastHeartbeat)
	if err := markJobOrphaned(ctx, p.client, job.ID, job.MatrixCellID, errMsg); err != nil {
		return err
	}

	slog.Warn("orphaned job marked failed", "job_id", job.ID, "last_heartbeat", lastHeartbeat)
	return nil
}

// CleanupStartupOrphans performs a one-time cleanup of jobs owned by this
// worker pool that were left processing when it previously crashed. Call once
// during startup, before the pool begins claiming new work.
func CleanupStartupOrphans(ctx context.Context, client *ent.Client, poolID string) error {
	orphans, err := client.QAJob.Query().
		Where(
			qajob.StatusEQ(qajob.StatusProcessing),
			qajob.WorkerIDEQ(poolID),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to query startup orphans: %w", err)
	}

	if len(orphans) == 0 {
		return nil
	}

	slog.Warn("found startup orphans from previous run", "pool_id", poolID, "count", len(orphans))

	for _, job := range orphans {
		errMsg := fmt.Sprintf("orphaned: worker pool %s restarted while job was processing", poolID)
		if err := markJobOrphaned(ctx, client, job.ID, job.MatrixCellID, errMsg); err != nil {
			slog.Error("failed to mark startup orphan", "job_id", job.ID, "error", err)
			continue
		}
		slog.Info("startup orphan recovered", "job_id", job.ID)
	}

	return nil
}

// markJobOrphaned marks a job failed and its owning cell failed, atomically.
func markJobOrphaned(ctx context.Context, client *ent.Client, jobID, cellID int, errorMsg string) error {
	now := time.Now()

	tx, err := client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QAJob.UpdateOneID(jobID).
		SetStatus(qajob.StatusFailed).
		SetCompletedAt(now).
		SetErrorMessage(errorMsg).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	if err := tx.MatrixCell.UpdateOneID(cellID).
		SetStatus(matrixcell.StatusFailed).
		SetUpdatedAt(now).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark cell failed: %w", err)
	}

	return tx.Commit()
}
