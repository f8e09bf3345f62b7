package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ChunkSet holds the schema definition for the ChunkSet entity.
//
// Grounded on backend/packages/documents/models/database/chunk_set.py
// (original_source).
type ChunkSet struct {
	ent.Schema
}

// Fields of the ChunkSet.
func (ChunkSet) Fields() []ent.Field {
	return []ent.Field{
		field.Int("document_id"),
		field.Int("company_id"),
		field.Enum("chunking_strategy").
			Values("none", "fixed_size", "sentence", "paragraph", "agentic").
			Default("none"),
		field.Int("total_chunks").
			Default(0),
		field.String("s3_prefix"),
		field.Bool("deleted").
			Default(false),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the ChunkSet.
func (ChunkSet) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("document", Document.Type).
			Ref("chunk_sets").
			Field("document_id").
			Unique().
			Required(),
		edge.To("chunks", Chunk.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the ChunkSet.
func (ChunkSet) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_id"),
		index.Fields("company_id"),
	}
}
