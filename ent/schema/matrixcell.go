package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MatrixCell holds the schema definition for the MatrixCell entity — one coordinate
// in the N-dimensional product of a matrix's entity sets.
//
// Grounded on backend/packages/matrices/models/domain/matrix.py (original_source) and
// spec.md §6's cell-signature canonicalization rule. The partial-unique index below is
// the durable dedup contract: at most one non-deleted cell per (matrix_id, signature).
type MatrixCell struct {
	ent.Schema
}

// Fields of the MatrixCell.
func (MatrixCell) Fields() []ent.Field {
	return []ent.Field{
		field.Int("matrix_id"),
		field.Int("company_id"),
		field.Enum("cell_type").
			Values("qa", "correlation"),
		field.Enum("status").
			Values("pending", "processing", "completed", "failed").
			Default("pending"),
		field.Int("current_answer_set_id").
			Optional().
			Nillable(),
		field.String("cell_signature").
			Comment("sha-256 hex of the canonical sorted (role,entity_id) encoding"),
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

// Edges of the MatrixCell.
func (MatrixCell) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("matrix", Matrix.Type).
			Ref("cells").
			Field("matrix_id").
			Unique().
			Required(),
		edge.To("entity_refs", CellEntityRef.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the MatrixCell.
func (MatrixCell) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("matrix_id", "cell_signature").
			Unique().
			Annotations(entsql.IndexWhere("deleted = false")),
		index.Fields("matrix_id", "status"),
	}
}

// CellEntityRef holds the schema definition for one coordinate component of a cell.
type CellEntityRef struct {
	ent.Schema
}

// Fields of the CellEntityRef.
func (CellEntityRef) Fields() []ent.Field {
	return []ent.Field{
		field.Int("cell_id"),
		field.String("role"),
		field.Int("entity_id"),
	}
}

// Edges of the CellEntityRef.
func (CellEntityRef) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("cell", MatrixCell.Type).
			Ref("entity_refs").
			Field("cell_id").
			Unique().
			Required(),
	}
}

// Indexes of the CellEntityRef.
func (CellEntityRef) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("cell_id"),
	}
}
