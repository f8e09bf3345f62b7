package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Matrix holds the schema definition for the Matrix entity.
//
// Grounded on backend/packages/matrices/models/domain/matrix.py (original_source).
type Matrix struct {
	ent.Schema
}

// Fields of the Matrix.
func (Matrix) Fields() []ent.Field {
	return []ent.Field{
		field.Int("workspace_id"),
		field.Int("company_id"),
		field.String("name"),
		field.String("description").
			Optional().
			Nillable(),
		field.Enum("matrix_type").
			Values("standard", "cross_correlation", "generic_correlation", "synopsis").
			Default("standard"),
	}
}

// Edges of the Matrix.
func (Matrix) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("company", Company.Type).
			Ref("matrices").
			Field("company_id").
			Unique().
			Required(),
		edge.To("entity_sets", EntitySet.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("cells", MatrixCell.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Matrix.
func (Matrix) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company_id"),
		index.Fields("workspace_id"),
	}
}
