package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entmatrixcell "github.com/corpusforge/platform/ent/matrixcell"
	"github.com/corpusforge/platform/pkg/matrixcell"
	testdb "github.com/corpusforge/platform/test/database"
)

func matrixTestEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.GET("/matrices/:id/stats", s.matrixStatsHandler)
	return e
}

func TestMatrixStatsHandler_InvalidID(t *testing.T) {
	s := &Server{}
	e := matrixTestEcho(s)

	req := httptest.NewRequest(http.MethodGet, "/matrices/not-a-number/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatrixStatsHandler_CountsCellsByStatus(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)
	m, err := client.Matrix.Create().SetCompanyID(company.ID).SetWorkspaceID(1).SetName("q1-review").SetMatrixType("standard").Save(ctx)
	require.NoError(t, err)

	_, err = client.MatrixCell.Create().
		SetMatrixID(m.ID).SetCompanyID(company.ID).
		SetCellType("qa").SetCellSignature("sig-1").
		SetStatus(entmatrixcell.StatusCompleted).
		Save(ctx)
	require.NoError(t, err)
	_, err = client.MatrixCell.Create().
		SetMatrixID(m.ID).SetCompanyID(company.ID).
		SetCellType("qa").SetCellSignature("sig-2").
		SetStatus(entmatrixcell.StatusPending).
		Save(ctx)
	require.NoError(t, err)

	s := &Server{cellEngine: matrixcell.New(client.Client, nil)}
	e := matrixTestEcho(s)

	req := httptest.NewRequest(http.MethodGet, "/matrices/"+strconv.Itoa(m.ID)+"/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats matrixcell.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalCells)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Pending)
}
