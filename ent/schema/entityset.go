package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EntitySet holds the schema definition for the EntitySet entity — one axis of a
// Matrix. Grounded on backend/packages/matrices/models/schemas/matrix_entity_set.py
// (original_source).
type EntitySet struct {
	ent.Schema
}

// Fields of the EntitySet.
func (EntitySet) Fields() []ent.Field {
	return []ent.Field{
		field.Int("matrix_id"),
		field.String("name"),
		field.Enum("entity_type").
			Values("document", "question"),
	}
}

// Edges of the EntitySet.
func (EntitySet) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("matrix", Matrix.Type).
			Ref("entity_sets").
			Field("matrix_id").
			Unique().
			Required(),
		edge.To("members", EntitySetMember.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the EntitySet.
func (EntitySet) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("matrix_id"),
	}
}

// EntitySetMember holds the schema definition for one typed member of an EntitySet.
type EntitySetMember struct {
	ent.Schema
}

// Fields of the EntitySetMember.
func (EntitySetMember) Fields() []ent.Field {
	return []ent.Field{
		field.Int("entity_set_id"),
		field.Int("entity_id"),
		field.Enum("entity_type").
			Values("document", "question"),
		field.Int("member_order"),
		field.String("label").
			Optional().
			Nillable(),
		field.Bool("agent_qa_requested").
			Default(false).
			Comment("question-level override: forces the agentic QA path regardless of document size"),
	}
}

// Edges of the EntitySetMember.
func (EntitySetMember) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("entity_set", EntitySet.Type).
			Ref("members").
			Field("entity_set_id").
			Unique().
			Required(),
	}
}

// Indexes of the EntitySetMember.
func (EntitySetMember) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("entity_set_id", "member_order"),
	}
}
