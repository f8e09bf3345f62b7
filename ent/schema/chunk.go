package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Chunk holds the schema definition for the Chunk entity.
//
// Grounded on backend/packages/documents/models/database/chunk.py
// (original_source). Content lives in object storage; this row is metadata only.
type Chunk struct {
	ent.Schema
}

// Fields of the Chunk.
func (Chunk) Fields() []ent.Field {
	return []ent.Field{
		field.Int("chunk_set_id"),
		field.String("chunk_id").
			Comment(`e.g. "chunk_001"`),
		field.Int("document_id").
			Comment("Denormalized from the parent chunk set for scoped queries"),
		field.Int("company_id").
			Comment("Denormalized from the parent document"),
		field.String("s3_key"),
		field.JSON("chunk_metadata", map[string]interface{}{}).
			Optional(),
		field.Int("chunk_order").
			Comment("Emission order; 0-based"),
		field.Bool("deleted").
			Default(false),
	}
}

// Edges of the Chunk.
func (Chunk) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("chunk_set", ChunkSet.Type).
			Ref("chunks").
			Field("chunk_set_id").
			Unique().
			Required(),
	}
}

// Indexes of the Chunk.
func (Chunk) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("chunk_set_id", "chunk_order"),
		index.Fields("company_id", "document_id"),
	}
}
