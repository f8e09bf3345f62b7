package searchindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testdb "github.com/corpusforge/platform/test/database"
)

// stubEmbeddingProvider returns a fixed vector per input text, keyed by a
// caller-supplied lookup so tests can control similarity deterministically
// without a real embedding API.
type stubEmbeddingProvider struct {
	vectors map[string][]float32
}

func (s *stubEmbeddingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (s *stubEmbeddingProvider) Model() string { return "stub-model" }

func TestIndex_IndexChunkThenVectorSearchRanksBySimilarity(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)
	doc, err := client.Document.Create().
		SetCompanyID(company.ID).
		SetFilename("contract.pdf").
		SetStorageKey("company/1/documents/1/original/contract.pdf").
		SetChecksum("deadbeef").
		Save(ctx)
	require.NoError(t, err)

	provider := &stubEmbeddingProvider{vectors: map[string][]float32{
		"payment terms are net 30":    {1, 0, 0},
		"the weather today is sunny":  {0, 1, 0},
		"what are the payment terms?": {1, 0, 0},
	}}
	idx := New(client.Client, provider)

	require.NoError(t, idx.IndexChunk(ctx, 1, doc.ID, company.ID, "payment terms are net 30"))
	require.NoError(t, idx.IndexChunk(ctx, 2, doc.ID, company.ID, "the weather today is sunny"))

	results, err := idx.Search(ctx, "what are the payment terms?", Filters{CompanyID: company.ID}, HybridWeights{Keyword: 0, Vector: 1}, 0, 10, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1, results[0].ChunkID)
	assert.Greater(t, results[0].VectorScore, results[len(results)-1].VectorScore)
}

func TestIndex_Search_RequiresCompanyFilter(t *testing.T) {
	client := testdb.NewTestClient(t)
	idx := New(client.Client, &stubEmbeddingProvider{vectors: map[string][]float32{}})

	_, err := idx.Search(context.Background(), "anything", Filters{}, HybridWeights{Keyword: 0.5, Vector: 0.5}, 0, 10, 10)
	assert.Error(t, err)
}

func TestIndex_Search_ScopesToDocumentIDsFilter(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)
	docA, err := client.Document.Create().
		SetCompanyID(company.ID).SetFilename("a.pdf").SetStorageKey("a").SetChecksum("a").Save(ctx)
	require.NoError(t, err)
	docB, err := client.Document.Create().
		SetCompanyID(company.ID).SetFilename("b.pdf").SetStorageKey("b").SetChecksum("b").Save(ctx)
	require.NoError(t, err)

	provider := &stubEmbeddingProvider{vectors: map[string][]float32{
		"from document a": {1, 0, 0},
		"from document b": {1, 0, 0},
		"query":           {1, 0, 0},
	}}
	idx := New(client.Client, provider)
	require.NoError(t, idx.IndexChunk(ctx, 1, docA.ID, company.ID, "from document a"))
	require.NoError(t, idx.IndexChunk(ctx, 2, docB.ID, company.ID, "from document b"))

	results, err := idx.Search(ctx, "query", Filters{CompanyID: company.ID, DocumentIDs: []int{docA.ID}}, HybridWeights{Keyword: 0, Vector: 1}, 0, 10, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docA.ID, results[0].DocumentID)
}
