package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/platform/pkg/executor"
)

// fakeBackend scripts a sequence of CheckStatus results so tests can drive
// the poll loop without a real container runtime.
type fakeBackend struct {
	launchErr     error
	statuses      []executor.StatusResult
	statusIdx     int
	cleanupCalled bool
	cleanupInfo   executor.ExecutionInfo
}

func (f *fakeBackend) Launch(_ context.Context, spec executor.JobSpec) (executor.ExecutionInfo, error) {
	if f.launchErr != nil {
		return executor.ExecutionInfo{}, f.launchErr
	}
	return executor.ExecutionInfo{Mode: "docker", ID: "container-1", Name: spec.ContainerName}, nil
}

func (f *fakeBackend) CheckStatus(_ context.Context, _ executor.ExecutionInfo) (executor.StatusResult, error) {
	if f.statusIdx >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	s := f.statuses[f.statusIdx]
	f.statusIdx++
	return s, nil
}

func (f *fakeBackend) Cleanup(_ context.Context, info executor.ExecutionInfo) {
	f.cleanupCalled = true
	f.cleanupInfo = info
}

func fastPhases() PhaseConfig {
	return PhaseConfig{
		LaunchTimeout:  time.Second,
		StatusTimeout:  time.Second,
		ExtractTimeout: time.Second,
		CleanupTimeout: time.Second,
		PollInterval:   time.Millisecond,
		MaxWait:        time.Second,
	}
}

func TestOrchestrate_CompletesAndExtracts(t *testing.T) {
	backend := &fakeBackend{
		statuses: []executor.StatusResult{
			{State: executor.JobStateRunning},
			{State: executor.JobStateCompleted},
		},
	}

	result, err := Orchestrate(context.Background(), backend, executor.JobSpec{ContainerName: "wf-1"}, fastPhases(),
		func(_ context.Context, info executor.ExecutionInfo) (interface{}, error) {
			return info.ID, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "container-1", result)
	assert.True(t, backend.cleanupCalled)
	assert.Equal(t, "container-1", backend.cleanupInfo.ID)
}

func TestOrchestrate_LaunchErrorPropagates(t *testing.T) {
	backend := &fakeBackend{launchErr: errors.New("docker unreachable")}

	_, err := Orchestrate(context.Background(), backend, executor.JobSpec{}, fastPhases(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker unreachable")
}

func TestOrchestrate_FailedStatusReturnsTypedError(t *testing.T) {
	backend := &fakeBackend{
		statuses: []executor.StatusResult{
			{State: executor.JobStateFailed, ExitCode: 1, Reason: "panic in agent"},
		},
	}

	_, err := Orchestrate(context.Background(), backend, executor.JobSpec{}, fastPhases(), nil)

	require.Error(t, err)
	var failedErr *JobExecutionFailedError
	require.ErrorAs(t, err, &failedErr)
	assert.Equal(t, 1, failedErr.ExitCode)
	assert.Equal(t, "panic in agent", failedErr.Reason)
	assert.False(t, backend.cleanupCalled, "cleanup must not run on a failed job, it's left for post-mortem")
}

func TestOrchestrate_StillRunningAtMaxWaitTimesOut(t *testing.T) {
	backend := &fakeBackend{
		statuses: []executor.StatusResult{{State: executor.JobStateRunning}},
	}
	phases := fastPhases()
	phases.MaxWait = 5 * time.Millisecond
	phases.PollInterval = time.Millisecond

	_, err := Orchestrate(context.Background(), backend, executor.JobSpec{}, phases, nil)

	require.Error(t, err)
	var timeoutErr *JobExecutionTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.False(t, backend.cleanupCalled)
}

func TestOrchestrate_ExtractErrorSkipsCleanup(t *testing.T) {
	backend := &fakeBackend{
		statuses: []executor.StatusResult{{State: executor.JobStateCompleted}},
	}

	_, err := Orchestrate(context.Background(), backend, executor.JobSpec{}, fastPhases(),
		func(_ context.Context, _ executor.ExecutionInfo) (interface{}, error) {
			return nil, errors.New("manifest upload failed")
		})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest upload failed")
	assert.False(t, backend.cleanupCalled)
}
