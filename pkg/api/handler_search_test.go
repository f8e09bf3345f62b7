package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusforge/platform/pkg/searchindex"
	testdb "github.com/corpusforge/platform/test/database"
)

func searchTestEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.POST("/companies/:id/search", s.chunkSearchHandler)
	return e
}

type stubEmbeddingProvider struct{}

func (stubEmbeddingProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbeddingProvider) Model() string { return "stub" }

func TestChunkSearchHandler_MissingQueryIsBadRequest(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := &Server{
		chunkIndex:    searchindex.New(client.Client, stubEmbeddingProvider{}),
		searchWeights: searchindex.HybridWeights{Keyword: 0.5, Vector: 0.5},
	}
	e := searchTestEcho(s)

	req := httptest.NewRequest(http.MethodPost, "/companies/1/search", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChunkSearchHandler_ValidQueryReturnsOK(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := &Server{
		chunkIndex:    searchindex.New(client.Client, stubEmbeddingProvider{}),
		searchWeights: searchindex.HybridWeights{Keyword: 0.5, Vector: 0.5},
	}
	e := searchTestEcho(s)

	body, err := json.Marshal(chunkSearchRequest{Query: "payment terms", Limit: 10})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/companies/1/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var results []searchindex.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Empty(t, results)
}
