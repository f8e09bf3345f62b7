// Package executor implements C1: launching, polling, and cleaning up a
// single opaque job in one of two backends (local Docker container, cluster
// orchestrator), behind one JobSpec/Backend surface so the orchestration
// layer (pkg/workflow, C2) never has to know which backend ran a job.
//
// Grounded on bdobrica-Ruriko's internal/ruriko/runtime/docker adapter for
// the Docker lifecycle shape (create/start/inspect/remove, managed-by
// labels, company-scoped bridge network) and on SPEC_FULL.md §4.1 for the
// JobSpec/Backend contract itself.
package executor

import "context"

// JobSpec is the runtime-independent description of one unit of work.
type JobSpec struct {
	ContainerName string
	TemplateName  string
	ImageName     string
	ImageTag      string
	EnvVars       map[string]string
	TemplateVars  map[string]interface{}
	// DockerNetwork overrides the backend's default network; empty uses the
	// Docker backend's configured default network, or the company-scoped
	// bridge network when no default is configured.
	DockerNetwork string
	CompanyID     int
}

// Image returns "ImageName:ImageTag", defaulting the tag to "latest".
func (s JobSpec) Image() string {
	if s.ImageTag == "" {
		return s.ImageName + ":latest"
	}
	return s.ImageName + ":" + s.ImageTag
}

// ExecutionInfo is the handle a Backend returns from Launch, opaque to the
// orchestration layer beyond its fields.
type ExecutionInfo struct {
	Mode string // "docker" | "cluster"
	ID   string // container id or cluster job name
	Name string
}

// JobState is the coarse state check_status reports.
type JobState string

// Supported job states.
const (
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// StatusResult is the outcome of one check_status call.
type StatusResult struct {
	State    JobState
	ExitCode int
	Reason   string // populated when State is failed
}

// Backend launches, polls, and cleans up jobs in one concrete runtime.
// Cleanup never returns an error: internal failures are logged and
// swallowed at this layer, so the orchestration layer's "cleanup is
// best-effort" invariant holds regardless of which backend ran the job.
type Backend interface {
	Launch(ctx context.Context, spec JobSpec) (ExecutionInfo, error)
	CheckStatus(ctx context.Context, info ExecutionInfo) (StatusResult, error)
	Cleanup(ctx context.Context, info ExecutionInfo)
}
