package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/corpusforge/platform/pkg/database"
	"github.com/corpusforge/platform/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health. Returns a minimal, safe response suitable
// for unauthenticated access. Only this platform's own components (database,
// worker pool) are checked; external dependencies (object store, embedding
// provider, cluster backend) are excluded so that a transient upstream outage
// does not get the orchestrator restarting a healthy process.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	_, err := database.Health(reqCtx, s.dbClient.DB())
	if err != nil {
		status = healthStatusUnhealthy
		checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: healthStatusHealthy}
	}

	resp := &HealthResponse{
		Status:  status,
		Version: version.GitCommit,
		Checks:  checks,
	}

	if s.workerPool != nil {
		ph := s.workerPool.Health()
		resp.WorkerPool = ph
		if ph != nil && !ph.IsHealthy {
			if status == healthStatusHealthy {
				status = healthStatusDegraded
				resp.Status = status
			}
			msg := healthStatusUnhealthy
			if ph.DBError != "" {
				msg = ph.DBError
			}
			checks["worker_pool"] = HealthCheck{Status: healthStatusDegraded, Message: msg}
		} else {
			checks["worker_pool"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	if s.workflowPool != nil {
		wh := s.workflowPool.Health()
		resp.WorkflowPool = wh
		if wh != nil && !wh.IsHealthy {
			if status == healthStatusHealthy {
				status = healthStatusDegraded
				resp.Status = status
			}
			msg := healthStatusUnhealthy
			if wh.DBError != "" {
				msg = wh.DBError
			}
			checks["workflow_pool"] = HealthCheck{Status: healthStatusDegraded, Message: msg}
		} else {
			checks["workflow_pool"] = HealthCheck{Status: healthStatusHealthy}
		}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, resp)
}
