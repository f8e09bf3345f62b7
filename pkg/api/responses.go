package api

import (
	"github.com/corpusforge/platform/pkg/jobqueue"
	"github.com/corpusforge/platform/pkg/workflow"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status       string                 `json:"status"`
	Version      string                 `json:"version"`
	Checks       map[string]HealthCheck `json:"checks"`
	WorkerPool   *jobqueue.PoolHealth   `json:"worker_pool,omitempty"`
	WorkflowPool *workflow.PoolHealth   `json:"workflow_pool,omitempty"`
}

// HealthCheck represents the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
