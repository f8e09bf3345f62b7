// Package matrixcell implements C8: realizing the N-dimensional product of
// a matrix's entity sets as deduplicated, lifecycle-managed cells.
//
// Grounded on ent/schema/matrixcell.go's own doc comment (cell_signature
// canonicalization, partial-unique dedup constraint) and
// original_source/backend/packages/matrices/models/domain/matrix.py
// (MatrixCellStatus, MatrixCellStatsModel) and
// backend/tests/unit/packages/matrices/test_lock_keys.py (the
// "matrix_structure:<id>" lock-key convention, reused here via pkg/lock).
package matrixcell

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/matrixcell"
	"github.com/corpusforge/platform/ent/qajob"
	"github.com/corpusforge/platform/pkg/lock"
	"github.com/corpusforge/platform/pkg/mq"
)

// EntityRef is one coordinate component of a cell.
type EntityRef struct {
	Role     string
	EntityID int
}

// matrixStructureLockTTL and matrixStructureAcquireWait mirror the original's
// lock_keys.py constants: short-lived, since a structure mutation or sweep
// should never legitimately hold the lock long.
const (
	matrixStructureLockTTL     = 30 * time.Second
	matrixStructureAcquireWait = 5 * time.Second
)

// matrixStructureLockKey matches the original's "matrix_structure:<id>"
// format exactly.
func matrixStructureLockKey(matrixID int) string {
	return "matrix_structure:" + strconv.Itoa(matrixID)
}

// Signature computes the stable cell_signature: sha-256 hex of refs sorted
// first by role then by entity_id, encoded as "role:entity_id" joined by
// "|".
func Signature(refs []EntityRef) string {
	sorted := make([]EntityRef, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Role != sorted[j].Role {
			return sorted[i].Role < sorted[j].Role
		}
		return sorted[i].EntityID < sorted[j].EntityID
	})

	parts := make([]string, len(sorted))
	for i, r := range sorted {
		parts[i] = fmt.Sprintf("%s:%d", r.Role, r.EntityID)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Engine creates and manages MatrixCell lifecycle.
type Engine struct {
	client           *ent.Client
	locker           *lock.Locker
	structureChanges *mq.Queue
}

// New builds an Engine. locker may be nil, in which case the pending-cell
// sweep runs without the matrix-structure lock (acceptable for single-writer
// deployments; production wiring always supplies one).
func New(client *ent.Client, locker *lock.Locker) *Engine {
	return &Engine{client: client, locker: locker}
}

// WithStructureChangeQueue attaches the Redis-streams queue CreateOrGet
// publishes to on every newly created cell, and that ConsumeStructureChanges
// reads from to trigger a sweep. Optional: an Engine without one still
// creates cells fine, it just relies on a caller to sweep directly instead
// of a cross-process consumer picking the change up.
func (e *Engine) WithStructureChangeQueue(q *mq.Queue) *Engine {
	e.structureChanges = q
	return e
}

// structureChangedMessage is the payload published whenever a matrix's cell
// set gains a new cell, so any process consuming the queue knows which
// matrix to sweep without re-deriving it from a full table scan.
type structureChangedMessage struct {
	MatrixID int `json:"matrix_id"`
}

// CreateOrGet computes the signature for refs and inserts a new cell, or
// returns the existing one if the partial-unique (matrix_id, signature)
// constraint is already satisfied by a non-deleted row.
func (e *Engine) CreateOrGet(ctx context.Context, matrixID, companyID int, cellType matrixcell.CellType, refs []EntityRef) (*ent.MatrixCell, bool, error) {
	signature := Signature(refs)

	tx, err := e.client.Tx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("matrixcell: starting transaction: %w", err)
	}

	cell, err := tx.MatrixCell.Create().
		SetMatrixID(matrixID).
		SetCompanyID(companyID).
		SetCellType(cellType).
		SetCellSignature(signature).
		Save(ctx)
	if err != nil {
		_ = tx.Rollback()
		if !ent.IsConstraintError(err) {
			return nil, false, fmt.Errorf("matrixcell: creating cell: %w", err)
		}
		existing, getErr := e.client.MatrixCell.Query().
			Where(
				matrixcell.MatrixID(matrixID),
				matrixcell.CellSignature(signature),
				matrixcell.Deleted(false),
			).
			Only(ctx)
		if getErr != nil {
			return nil, false, fmt.Errorf("matrixcell: loading existing cell after constraint violation: %w", getErr)
		}
		return existing, false, nil
	}

	for _, r := range refs {
		if _, err := tx.CellEntityRef.Create().
			SetCellID(cell.ID).
			SetRole(r.Role).
			SetEntityID(r.EntityID).
			Save(ctx); err != nil {
			_ = tx.Rollback()
			return nil, false, fmt.Errorf("matrixcell: creating entity ref: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("matrixcell: committing cell creation: %w", err)
	}

	if e.structureChanges != nil {
		if _, err := e.structureChanges.Publish(ctx, structureChangedMessage{MatrixID: matrixID}); err != nil {
			slog.Error("matrixcell: publishing structure-change message", "matrix_id", matrixID, "error", err)
		}
	}

	return cell, true, nil
}

// ConsumeStructureChanges reads one batch of pending structure-change
// messages and sweeps the matrix each one names. Callers loop this alongside
// a poll interval (mirroring pkg/jobqueue.Worker's own poll loop) so that a
// cell created on one process gets its QAJob enqueued even if SweepPending
// is never called directly on that same process.
func (e *Engine) ConsumeStructureChanges(ctx context.Context) error {
	if e.structureChanges == nil {
		return nil
	}
	return e.structureChanges.Consume(ctx, func(ctx context.Context, msg mq.Message) error {
		var payload structureChangedMessage
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("matrixcell: decoding structure-change message: %w", err)
		}
		if _, err := e.sweepOneMatrix(ctx, payload.MatrixID); err != nil {
			return fmt.Errorf("matrixcell: sweeping matrix %d after structure change: %w", payload.MatrixID, err)
		}
		return nil
	})
}

// Stats is the grouped-by-status count of non-deleted cells, computed
// on demand. It carries cell QA status counts only; document-extraction
// counts are not part of it.
type Stats struct {
	TotalCells int
	Completed  int
	Processing int
	Pending    int
	Failed     int
}

// StatsForMatrix computes Stats for one matrix's non-deleted cells.
func (e *Engine) StatsForMatrix(ctx context.Context, matrixID int) (Stats, error) {
	cells, err := e.client.MatrixCell.Query().
		Where(matrixcell.MatrixID(matrixID), matrixcell.Deleted(false)).
		All(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("matrixcell: loading cells for stats: %w", err)
	}

	var s Stats
	s.TotalCells = len(cells)
	for _, c := range cells {
		switch c.Status {
		case matrixcell.StatusCompleted:
			s.Completed++
		case matrixcell.StatusProcessing:
			s.Processing++
		case matrixcell.StatusPending:
			s.Pending++
		case matrixcell.StatusFailed:
			s.Failed++
		}
	}
	return s, nil
}

// AttachAnswerSet records answerSetID as a cell's current answer and
// transitions it to completed. Prior answer sets remain in storage for
// audit; only the pointer moves.
func (e *Engine) AttachAnswerSet(ctx context.Context, cellID, answerSetID int) error {
	err := e.client.MatrixCell.UpdateOneID(cellID).
		SetCurrentAnswerSetID(answerSetID).
		SetStatus(matrixcell.StatusCompleted).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("matrixcell: attaching answer set to cell %d: %w", cellID, err)
	}
	return nil
}

// MarkFailed transitions a cell to failed.
func (e *Engine) MarkFailed(ctx context.Context, cellID int) error {
	err := e.client.MatrixCell.UpdateOneID(cellID).
		SetStatus(matrixcell.StatusFailed).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("matrixcell: marking cell %d failed: %w", cellID, err)
	}
	return nil
}

// ErrLockHeld is returned by SweepPending when the matrix-structure lock is
// held by a concurrent structure mutation or another sweep.
var ErrLockHeld = errors.New("matrixcell: matrix structure lock held by another operation")

// SweepPending enqueues a QAJob for every pending cell (optionally scoped
// to one matrix; pass 0 for all matrices), transitioning each to
// processing. Protected by the matrix-structure lock so a concurrent sweep
// and a concurrent cell-creation batch on the same matrix never race on its
// coordinate set. When scoped to all matrices, each matrix's cells are
// swept under that matrix's own lock independently.
func (e *Engine) SweepPending(ctx context.Context, matrixID int) (int, error) {
	if matrixID == 0 {
		matrixIDs, err := e.pendingMatrixIDs(ctx)
		if err != nil {
			return 0, err
		}
		total := 0
		for _, id := range matrixIDs {
			n, err := e.sweepOneMatrix(ctx, id)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	}
	return e.sweepOneMatrix(ctx, matrixID)
}

func (e *Engine) pendingMatrixIDs(ctx context.Context) ([]int, error) {
	cells, err := e.client.MatrixCell.Query().
		Where(matrixcell.StatusEQ(matrixcell.StatusPending), matrixcell.Deleted(false)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("matrixcell: listing pending cells: %w", err)
	}
	seen := map[int]bool{}
	var ids []int
	for _, c := range cells {
		if !seen[c.MatrixID] {
			seen[c.MatrixID] = true
			ids = append(ids, c.MatrixID)
		}
	}
	return ids, nil
}

func (e *Engine) sweepOneMatrix(ctx context.Context, matrixID int) (int, error) {
	if e.locker == nil {
		return e.enqueuePending(ctx, matrixID)
	}

	resource := matrixStructureLockKey(matrixID)
	deadline := time.Now().Add(matrixStructureAcquireWait)
	for {
		token, ok, err := e.locker.Acquire(ctx, resource, matrixStructureLockTTL)
		if err != nil {
			return 0, fmt.Errorf("matrixcell: acquiring structure lock: %w", err)
		}
		if ok {
			defer func() { _ = e.locker.Release(context.WithoutCancel(ctx), resource, token) }()
			return e.enqueuePending(ctx, matrixID)
		}
		if time.Now().After(deadline) {
			return 0, ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (e *Engine) enqueuePending(ctx context.Context, matrixID int) (int, error) {
	cells, err := e.client.MatrixCell.Query().
		Where(
			matrixcell.MatrixID(matrixID),
			matrixcell.StatusEQ(matrixcell.StatusPending),
			matrixcell.Deleted(false),
		).
		All(ctx)
	if err != nil {
		return 0, fmt.Errorf("matrixcell: listing pending cells for matrix %d: %w", matrixID, err)
	}

	n := 0
	for _, cell := range cells {
		err := e.client.MatrixCell.UpdateOneID(cell.ID).
			SetStatus(matrixcell.StatusProcessing).
			Exec(ctx)
		if err != nil {
			return n, fmt.Errorf("matrixcell: transitioning cell %d to processing: %w", cell.ID, err)
		}
		if _, err := e.client.QAJob.Create().
			SetMatrixCellID(cell.ID).
			SetCompanyID(cell.CompanyID).
			SetStatus(qajob.StatusQueued).
			Save(ctx); err != nil {
			return n, fmt.Errorf("matrixcell: enqueuing QA job for cell %d: %w", cell.ID, err)
		}
		n++
	}
	return n, nil
}
