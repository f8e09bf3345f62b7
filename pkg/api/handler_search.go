package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/corpusforge/platform/pkg/searchindex"
)

// RegisterSearchRoutes wires the scoped hybrid chunk-search endpoint.
func (s *Server) RegisterSearchRoutes(index *searchindex.Index, weights searchindex.HybridWeights) {
	s.chunkIndex = index
	s.searchWeights = weights
	s.echo.POST("/companies/:id/search", s.chunkSearchHandler)
}

type chunkSearchRequest struct {
	Query       string `json:"query"`
	DocumentIDs []int  `json:"document_ids,omitempty"`
	Skip        int    `json:"skip"`
	Limit       int    `json:"limit"`
}

func (s *Server) chunkSearchHandler(c *echo.Context) error {
	companyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid company id")
	}

	var req chunkSearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	results, err := s.chunkIndex.Search(c.Request().Context(), req.Query, searchindex.Filters{
		CompanyID:   companyID,
		DocumentIDs: req.DocumentIDs,
	}, s.searchWeights, req.Skip, req.Limit, req.Limit*3)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}
