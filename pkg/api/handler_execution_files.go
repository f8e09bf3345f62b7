package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/ent/executionfile"
	"github.com/corpusforge/platform/ent/workflowexecution"
	"github.com/corpusforge/platform/pkg/credential"
)

// RegisterExecutionFileRoutes wires the callback a running workflow job uses
// to register the output files it wrote directly to object storage, so C2's
// extract phase has something durable to read once check_status reports
// completed.
func (s *Server) RegisterExecutionFileRoutes(broker *credential.Broker) {
	s.credBroker = broker
	s.echo.POST("/executions/:id/files", s.registerExecutionFileHandler)
}

type registerExecutionFileRequest struct {
	FileType    executionfile.FileType `json:"file_type"`
	Name        string                 `json:"name"`
	StoragePath string                 `json:"storage_path"`
	FileSize    int64                  `json:"file_size"`
	MimeType    string                 `json:"mime_type,omitempty"`
}

// registerExecutionFileHandler authenticates the caller with the service
// account key sent in the X-Api-Key header (C3) and records one
// ExecutionFile row for the execution. The execution lookup is scoped by the
// caller's company only: the key is not tied to one execution, so any
// service account of that company can register a file against any of the
// company's executions.
func (s *Server) registerExecutionFileHandler(c *echo.Context) error {
	executionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid execution id")
	}

	plainKey := c.Request().Header.Get("X-Api-Key")
	if plainKey == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing X-Api-Key header")
	}
	user, err := s.credBroker.Authenticate(c.Request().Context(), plainKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credential")
	}

	var req registerExecutionFileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.StoragePath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name and storage_path are required")
	}

	exec, err := s.dbClient.WorkflowExecution.Query().
		Where(workflowexecution.ID(executionID), workflowexecution.CompanyID(user.CompanyID)).
		Only(c.Request().Context())
	if err != nil {
		if ent.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "execution not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	create := s.dbClient.ExecutionFile.Create().
		SetExecutionID(exec.ID).
		SetCompanyID(user.CompanyID).
		SetFileType(req.FileType).
		SetName(req.Name).
		SetStoragePath(req.StoragePath).
		SetFileSize(req.FileSize)
	if req.MimeType != "" {
		create = create.SetMimeType(req.MimeType)
	}

	file, err := create.Save(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, file)
}
