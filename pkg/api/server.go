// Package api provides the HTTP operational surface for the platform.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corpusforge/platform/pkg/billing"
	"github.com/corpusforge/platform/pkg/config"
	"github.com/corpusforge/platform/pkg/credential"
	"github.com/corpusforge/platform/pkg/database"
	"github.com/corpusforge/platform/pkg/jobqueue"
	"github.com/corpusforge/platform/pkg/matrixcell"
	"github.com/corpusforge/platform/pkg/searchindex"
	"github.com/corpusforge/platform/pkg/workflow"
)

// Server is the HTTP server: NewServer registers the process-level surface
// every deployment needs (health checks and Prometheus metrics), and the
// opt-in Register*Routes methods in this package add the matrix, billing,
// search and execution-file routes.
type Server struct {
	echo          *echo.Echo
	httpServer    *http.Server
	cfg           *config.Config
	dbClient      *database.Client
	workerPool    *jobqueue.WorkerPool // nil if this process doesn't run workers
	workflowPool  *workflow.Pool       // nil if this process doesn't run workflow workers
	cellEngine    *matrixcell.Engine   // nil until RegisterMatrixRoutes is called
	quotaGate     *billing.Gate        // nil until RegisterBillingRoutes is called
	chunkIndex    *searchindex.Index   // nil until RegisterSearchRoutes is called
	searchWeights searchindex.HybridWeights
	credBroker    *credential.Broker // nil until RegisterExecutionFileRoutes is called
}

// NewServer creates a new API server with Echo v5.
func NewServer(cfg *config.Config, dbClient *database.Client, workerPool *jobqueue.WorkerPool) *Server {
	e := echo.New()

	s := &Server{
		echo:       e,
		cfg:        cfg,
		dbClient:   dbClient,
		workerPool: workerPool,
	}

	s.setupRoutes()
	return s
}

// RegisterWorkflowPool attaches the workflow-execution pool so /health
// reports its status alongside the QA job worker pool's.
func (s *Server) RegisterWorkflowPool(pool *workflow.Pool) {
	s.workflowPool = pool
}

// Echo exposes the underlying Echo instance so callers can register
// additional domain routes (QA jobs, matrices, documents) after NewServer.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// setupRoutes registers the operational routes common to every process.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	metricsHandler := promhttp.Handler()
	s.echo.GET("/metrics", func(c *echo.Context) error {
		metricsHandler.ServeHTTP(c.Response(), c.Request())
		return nil
	})
}

// Start starts the HTTP server on the given address and blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
