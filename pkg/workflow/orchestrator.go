// Package workflow implements C2: stateful orchestration of a single
// Launch -> Poll-to-completion -> Extract -> Cleanup lifecycle as a durable,
// restartable unit, backed by a database-claimed worker pool rather than an
// external workflow engine.
//
// Grounded on pkg/jobqueue's claim/heartbeat/orphan-sweep shape (generalized
// here from QAJob claiming to WorkflowExecution claiming) and on
// SPEC_FULL.md's four-phase orchestration contract over pkg/executor's
// Launch/CheckStatus/Cleanup (C1).
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/corpusforge/platform/pkg/executor"
)

// PhaseConfig bounds each phase of one orchestration run.
type PhaseConfig struct {
	LaunchTimeout  time.Duration
	StatusTimeout  time.Duration
	ExtractTimeout time.Duration
	CleanupTimeout time.Duration
	// PollInterval is a timer, not wall-clock polling of an external
	// scheduler: the loop sleeps this long between check_status calls.
	PollInterval time.Duration
	// MaxWait bounds total time spent waiting for completion, independent of
	// StatusTimeout (which bounds a single check_status call).
	MaxWait time.Duration
}

// JobExecutionFailedError reports that check_status itself returned failed,
// as opposed to a deadline expiring while still running.
type JobExecutionFailedError struct {
	ExitCode int
	Reason   string
}

func (e *JobExecutionFailedError) Error() string {
	return fmt.Sprintf("workflow: job execution failed (exit %d): %s", e.ExitCode, e.Reason)
}

// JobExecutionTimeoutError reports that the job was still running when
// PhaseConfig.MaxWait elapsed.
type JobExecutionTimeoutError struct {
	Elapsed time.Duration
}

func (e *JobExecutionTimeoutError) Error() string {
	return fmt.Sprintf("workflow: job execution timed out after %s", e.Elapsed)
}

var (
	_ error = (*JobExecutionFailedError)(nil)
	_ error = (*JobExecutionTimeoutError)(nil)
)

// Extractor reads the durable result out of a completed job's side effects
// (object storage, a callback row the job posted to the platform API, ...).
// Called exactly once, after check_status reports completed.
type Extractor func(ctx context.Context, info executor.ExecutionInfo) (interface{}, error)

// Orchestrate runs Launch -> Poll-to-completion -> Extract -> Cleanup against
// backend for spec and returns whatever extract produced. Per C1's contract,
// cleanup only runs after a successful extract: a job that failed or timed
// out is left running for post-mortem rather than torn down here.
func Orchestrate(ctx context.Context, backend executor.Backend, spec executor.JobSpec, phases PhaseConfig, extract Extractor) (interface{}, error) {
	launchCtx, cancelLaunch := context.WithTimeout(ctx, phases.LaunchTimeout)
	info, err := backend.Launch(launchCtx, spec)
	cancelLaunch()
	if err != nil {
		return nil, fmt.Errorf("workflow: launch: %w", err)
	}

	if err := pollToCompletion(ctx, backend, info, phases); err != nil {
		return nil, err
	}

	extractCtx, cancelExtract := context.WithTimeout(ctx, phases.ExtractTimeout)
	result, err := extract(extractCtx, info)
	cancelExtract()
	if err != nil {
		return nil, fmt.Errorf("workflow: extract: %w", err)
	}

	cleanupCtx, cancelCleanup := context.WithTimeout(context.Background(), phases.CleanupTimeout)
	backend.Cleanup(cleanupCtx, info)
	cancelCleanup()

	return result, nil
}

// pollToCompletion sleeps PollInterval between check_status calls until the
// job reports completed or failed, or MaxWait elapses.
func pollToCompletion(ctx context.Context, backend executor.Backend, info executor.ExecutionInfo, phases PhaseConfig) error {
	start := time.Now()
	for {
		if elapsed := time.Since(start); elapsed >= phases.MaxWait {
			return &JobExecutionTimeoutError{Elapsed: elapsed}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(phases.PollInterval):
		}

		statusCtx, cancel := context.WithTimeout(ctx, phases.StatusTimeout)
		status, err := backend.CheckStatus(statusCtx, info)
		cancel()
		if err != nil {
			return fmt.Errorf("workflow: check_status: %w", err)
		}

		switch status.State {
		case executor.JobStateCompleted:
			return nil
		case executor.JobStateFailed:
			return &JobExecutionFailedError{ExitCode: status.ExitCode, Reason: status.Reason}
		}
	}
}
