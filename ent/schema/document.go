package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Document holds the schema definition for the Document entity.
//
// Grounded on backend/packages/documents/models/database (original_source).
type Document struct {
	ent.Schema
}

// Fields of the Document.
func (Document) Fields() []ent.Field {
	return []ent.Field{
		field.Int("company_id"),
		field.String("filename"),
		field.String("storage_key"),
		field.String("checksum").
			Comment("sha-256 of content; unique with company_id among non-deleted documents"),
		field.Enum("extraction_status").
			Values("pending", "processing", "completed", "failed").
			Default("pending"),
		field.String("extracted_content_path").
			Optional().
			Nillable(),
		field.Int("current_chunk_set_id").
			Optional().
			Nillable(),
		field.Bool("deleted").
			Default(false),
		field.Time("uploaded_at").
			Default(time.Now).
			Immutable(),
		field.Time("extracted_at").
			Optional().
			Nillable(),
	}
}

// Edges of the Document.
func (Document) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("company", Company.Type).
			Ref("documents").
			Field("company_id").
			Unique().
			Required(),
		edge.To("chunk_sets", ChunkSet.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Document.
func (Document) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company_id", "checksum").
			Unique().
			Annotations(entsql.IndexWhere("deleted = false")),
		index.Fields("company_id", "extraction_status"),
	}
}
