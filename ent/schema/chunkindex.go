package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ChunkIndex holds the schema definition for the ChunkIndex entity — the
// hybrid-search backing row for one chunk.
//
// Grounded on SPEC_FULL.md §4.7's hybrid search protocol and the teacher's own
// full-text search convention (citations.quote_text GIN index,
// pkg/database/migrations.go). No vector-database client appears anywhere in
// the retrieved example pack, so the vector half of hybrid search is a plain
// JSON-encoded float32 slice compared by cosine similarity in pkg/searchindex
// rather than a dedicated vector store; see DESIGN.md for this decision. The
// keyword half indexes Content via a GIN tsvector index created alongside the
// other full-text indexes.
type ChunkIndex struct {
	ent.Schema
}

// Fields of the ChunkIndex.
func (ChunkIndex) Fields() []ent.Field {
	return []ent.Field{
		field.Int("chunk_id"),
		field.Int("document_id"),
		field.Int("company_id"),
		field.Text("content").
			Comment("copied from the chunk's object-store body at index time"),
		field.JSON("embedding", []float32{}).
			Optional().
			Comment("nil until the embedding provider has run for this chunk"),
		field.String("embedding_model").
			Optional(),
		field.Time("indexed_at").
			Default(time.Now),
	}
}

// Indexes of the ChunkIndex.
func (ChunkIndex) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("chunk_id").
			Unique(),
		index.Fields("company_id", "document_id"),
	}
}
