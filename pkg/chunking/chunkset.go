package chunking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corpusforge/platform/ent"
	"github.com/corpusforge/platform/pkg/objectstore"
	"github.com/corpusforge/platform/pkg/storagelayout"
)

// ChunkInput is one chunk produced by a chunking strategy. ChunkID is empty
// for strategies that haven't assigned one yet (Persist assigns
// "chunk_NNN" by emission order); it's populated when the input comes from
// ReadManifest, since an agentic worker already uploaded the body under that
// id and PersistAgentic must not re-derive a different one.
type ChunkInput struct {
	ChunkID  string
	Body     string
	Metadata map[string]interface{}
}

// manifestEntry is one chunk's record inside manifest.json.
type manifestEntry struct {
	ChunkID  string                 `json:"chunk_id"`
	Metadata map[string]interface{} `json:"metadata"`
}

// manifest is the chunk manifest format from SPEC_FULL.md §6.
type manifest struct {
	DocumentID  int             `json:"document_id"`
	CreatedAt   string          `json:"created_at"`
	TotalChunks int             `json:"total_chunks"`
	Chunks      []manifestEntry `json:"chunks"`
}

// Persister writes chunk bodies, metadata, and the manifest to object
// storage and records the ChunkSet/Chunk rows: the ChunkSet row first, then
// each chunk's body, metadata and Chunk row in turn, then the manifest, and
// last the document's current chunk set. Every body and metadata blob is
// written before the manifest, so a manifest never names a chunk whose
// content is missing.
type Persister struct {
	client *ent.Client
	store  objectstore.Store
}

// NewPersister builds a Persister.
func NewPersister(client *ent.Client, store objectstore.Store) *Persister {
	return &Persister{client: client, store: store}
}

// Persist writes inputs as one new ChunkSet for document, superseding
// whatever chunk set the document previously pointed to (the prior set's
// rows are left in place for audit, same as AnswerSet history).
func (p *Persister) Persist(ctx context.Context, companyID, documentID int, strategy Strategy, inputs []ChunkInput) (*ent.ChunkSet, error) {
	prefix := storagelayout.ChunkPrefix(companyID, documentID)

	set, err := p.client.ChunkSet.Create().
		SetCompanyID(companyID).
		SetDocumentID(documentID).
		SetChunkingStrategy(string(strategy)).
		SetS3Prefix(prefix).
		SetTotalChunks(len(inputs)).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("chunking: creating chunk set: %w", err)
	}

	entries := make([]manifestEntry, 0, len(inputs))
	for i, in := range inputs {
		chunkID := fmt.Sprintf("chunk_%03d", i)

		if err := p.store.Put(ctx, storagelayout.ChunkBody(companyID, documentID, chunkID), []byte(in.Body)); err != nil {
			return nil, fmt.Errorf("chunking: writing chunk %s body: %w", chunkID, err)
		}
		metaJSON, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("chunking: marshaling chunk %s metadata: %w", chunkID, err)
		}
		if err := p.store.Put(ctx, storagelayout.ChunkMeta(companyID, documentID, chunkID), metaJSON); err != nil {
			return nil, fmt.Errorf("chunking: writing chunk %s metadata: %w", chunkID, err)
		}

		_, err = p.client.Chunk.Create().
			SetChunkSetID(set.ID).
			SetChunkID(chunkID).
			SetDocumentID(documentID).
			SetCompanyID(companyID).
			SetS3Key(storagelayout.ChunkBody(companyID, documentID, chunkID)).
			SetChunkMetadata(in.Metadata).
			SetChunkOrder(i).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("chunking: creating chunk row %s: %w", chunkID, err)
		}

		entries = append(entries, manifestEntry{ChunkID: chunkID, Metadata: in.Metadata})
	}

	manifestJSON, err := json.Marshal(manifest{
		DocumentID:  documentID,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		TotalChunks: len(entries),
		Chunks:      entries,
	})
	if err != nil {
		return nil, fmt.Errorf("chunking: marshaling manifest: %w", err)
	}
	if err := p.store.Put(ctx, storagelayout.ChunkManifest(companyID, documentID), manifestJSON); err != nil {
		return nil, fmt.Errorf("chunking: writing manifest: %w", err)
	}

	if _, err := p.client.Document.UpdateOneID(documentID).SetCurrentChunkSetID(set.ID).Save(ctx); err != nil {
		return nil, fmt.Errorf("chunking: updating document's current chunk set: %w", err)
	}

	return set, nil
}

// ReadManifest loads and validates an agentic-chunking worker's output
// manifest, failing if it is missing or any referenced chunk body/metadata
// pair is absent — a chunk set is only ever considered present once its
// manifest and every chunk it names exist.
func ReadManifest(ctx context.Context, store objectstore.Store, companyID, documentID int) ([]ChunkInput, error) {
	raw, err := store.Get(ctx, storagelayout.ChunkManifest(companyID, documentID))
	if err != nil {
		return nil, fmt.Errorf("chunking: reading manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("chunking: parsing manifest: %w", err)
	}

	inputs := make([]ChunkInput, 0, len(m.Chunks))
	for _, entry := range m.Chunks {
		body, err := store.Get(ctx, storagelayout.ChunkBody(companyID, documentID, entry.ChunkID))
		if err != nil {
			return nil, fmt.Errorf("chunking: reading chunk %s body: %w", entry.ChunkID, err)
		}
		if _, err := store.Get(ctx, storagelayout.ChunkMeta(companyID, documentID, entry.ChunkID)); err != nil {
			return nil, fmt.Errorf("chunking: reading chunk %s metadata: %w", entry.ChunkID, err)
		}
		inputs = append(inputs, ChunkInput{ChunkID: entry.ChunkID, Body: string(body), Metadata: entry.Metadata})
	}
	return inputs, nil
}

// PersistAgentic records ChunkSet/Chunk rows for chunks an agentic-chunking
// worker already uploaded (body, metadata, and manifest all written by the
// worker itself, per SPEC_FULL.md §4.7's agentic-chunking job extract
// phase) — unlike Persist, it never re-uploads a body or rewrites the
// manifest, since both already exist at the inputs' ChunkID-derived keys.
func (p *Persister) PersistAgentic(ctx context.Context, companyID, documentID int, inputs []ChunkInput) (*ent.ChunkSet, error) {
	set, err := p.client.ChunkSet.Create().
		SetCompanyID(companyID).
		SetDocumentID(documentID).
		SetChunkingStrategy(string(StrategyAgentic)).
		SetS3Prefix(storagelayout.ChunkPrefix(companyID, documentID)).
		SetTotalChunks(len(inputs)).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("chunking: creating agentic chunk set: %w", err)
	}

	for i, in := range inputs {
		if in.ChunkID == "" {
			return nil, fmt.Errorf("chunking: agentic input %d missing chunk_id", i)
		}
		_, err := p.client.Chunk.Create().
			SetChunkSetID(set.ID).
			SetChunkID(in.ChunkID).
			SetDocumentID(documentID).
			SetCompanyID(companyID).
			SetS3Key(storagelayout.ChunkBody(companyID, documentID, in.ChunkID)).
			SetChunkMetadata(in.Metadata).
			SetChunkOrder(i).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("chunking: creating agentic chunk row %s: %w", in.ChunkID, err)
		}
	}

	if _, err := p.client.Document.UpdateOneID(documentID).SetCurrentChunkSetID(set.ID).Save(ctx); err != nil {
		return nil, fmt.Errorf("chunking: updating document's current chunk set: %w", err)
	}

	return set, nil
}
