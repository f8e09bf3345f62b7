package chunking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corpusforge/platform/pkg/config"
	"github.com/corpusforge/platform/pkg/objectstore"
	testdb "github.com/corpusforge/platform/test/database"
)

func TestPersister_PersistWritesBodyMetaAndManifestThenDBRows(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	store, err := objectstore.New(config.ObjectStoreConfig{
		Provider: config.ObjectStoreProviderFilesystem,
		RootDir:  t.TempDir(),
	})
	require.NoError(t, err)

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)
	doc, err := client.Document.Create().
		SetCompanyID(company.ID).
		SetFilename("contract.pdf").
		SetStorageKey("company/1/documents/1/original/contract.pdf").
		SetChecksum("deadbeef").
		Save(ctx)
	require.NoError(t, err)

	p := NewPersister(client.Client, store)
	set, err := p.Persist(ctx, company.ID, doc.ID, StrategyParagraph, []ChunkInput{
		{Body: "first paragraph.", Metadata: map[string]interface{}{"page": float64(1)}},
		{Body: "second paragraph.", Metadata: map[string]interface{}{"page": float64(2)}},
	})
	require.NoError(t, err)

	require.Equal(t, 2, set.TotalChunks)

	chunks, err := client.Chunk.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	inputs, err := ReadManifest(ctx, store, company.ID, doc.ID)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	require.Equal(t, "first paragraph.", inputs[0].Body)
	require.Equal(t, "chunk_000", inputs[0].ChunkID)

	updatedDoc, err := client.Document.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, updatedDoc.CurrentChunkSetID)
	require.Equal(t, set.ID, *updatedDoc.CurrentChunkSetID)
}

func TestPersister_PersistAgenticSkipsReupload(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	store, err := objectstore.New(config.ObjectStoreConfig{
		Provider: config.ObjectStoreProviderFilesystem,
		RootDir:  t.TempDir(),
	})
	require.NoError(t, err)

	company, err := client.Company.Create().SetName("acme").SetSlug("acme").Save(ctx)
	require.NoError(t, err)
	doc, err := client.Document.Create().
		SetCompanyID(company.ID).
		SetFilename("contract.pdf").
		SetStorageKey("company/1/documents/1/original/contract.pdf").
		SetChecksum("deadbeef2").
		Save(ctx)
	require.NoError(t, err)

	p := NewPersister(client.Client, store)
	set, err := p.PersistAgentic(ctx, company.ID, doc.ID, []ChunkInput{
		{ChunkID: "chunk_000", Metadata: map[string]interface{}{"page": float64(1)}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, set.TotalChunks)

	chunks, err := client.Chunk.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "chunk_000", chunks[0].ChunkID)
}
