package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/corpusforge/platform/pkg/matrixcell"
)

// RegisterMatrixRoutes wires the matrix-cell stats endpoint. Called from
// main once a matrixcell.Engine is available; kept optional so tests that
// build a Server without Redis-backed dependencies still work.
func (s *Server) RegisterMatrixRoutes(engine *matrixcell.Engine) {
	s.cellEngine = engine
	s.echo.GET("/matrices/:id/stats", s.matrixStatsHandler)
}

func (s *Server) matrixStatsHandler(c *echo.Context) error {
	matrixID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid matrix id")
	}

	stats, err := s.cellEngine.StatsForMatrix(c.Request().Context(), matrixID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
