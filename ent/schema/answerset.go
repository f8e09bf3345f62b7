package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AnswerSet holds the schema definition for the AnswerSet entity.
//
// Grounded on libs/qa/qa/answer_data.py (original_source). answer_found=false implies
// an empty answers edge set; enforced in pkg/qaengine, not by a DB constraint.
type AnswerSet struct {
	ent.Schema
}

// Fields of the AnswerSet.
func (AnswerSet) Fields() []ent.Field {
	return []ent.Field{
		field.Int("company_id"),
		field.Bool("answer_found"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the AnswerSet.
func (AnswerSet) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("answers", Answer.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the AnswerSet.
func (AnswerSet) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company_id"),
	}
}

// Answer holds the schema definition for one typed answer within an AnswerSet.
//
// answer_data is stored as JSON holding the tagged variant (text|date|currency|select);
// pkg/qaengine writes the variant map, keyed by answer_type —
// this schema does not attempt to model the variant as separate nullable columns.
type Answer struct {
	ent.Schema
}

// Fields of the Answer.
func (Answer) Fields() []ent.Field {
	return []ent.Field{
		field.Int("answer_set_id"),
		field.Enum("answer_type").
			Values("text", "date", "currency", "select"),
		field.JSON("answer_data", map[string]interface{}{}),
		field.Float("confidence"),
		field.Int("answer_order").
			Default(0),
	}
}

// Edges of the Answer.
func (Answer) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("answer_set", AnswerSet.Type).
			Ref("answers").
			Field("answer_set_id").
			Unique().
			Required(),
		edge.To("citations", Citation.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Answer.
func (Answer) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("answer_set_id", "answer_order"),
	}
}

// Citation holds the schema definition for one citation backing an Answer.
//
// Grounded on libs/qa/qa/citation.py (original_source).
type Citation struct {
	ent.Schema
}

// Fields of the Citation.
func (Citation) Fields() []ent.Field {
	return []ent.Field{
		field.Int("answer_id"),
		field.Int("document_id"),
		field.Text("quote_text"),
		field.Int("citation_order"),
		field.Float("grounding_score").
			Optional().
			Nillable(),
	}
}

// Edges of the Citation.
func (Citation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("answer", Answer.Type).
			Ref("citations").
			Field("answer_id").
			Unique().
			Required(),
	}
}

// Indexes of the Citation.
func (Citation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("answer_id", "citation_order"),
	}
}
