package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Company holds the schema definition for the Company entity.
//
// Grounded on backend/packages/companies (original_source) and the teacher's
// AlertSession schema conventions (field/edge/index DSL, explicit Comment use).
type Company struct {
	ent.Schema
}

// Fields of the Company.
func (Company) Fields() []ent.Field {
	return []ent.Field{
		field.String("name"),
		field.String("slug").
			Unique().
			Comment("URL-safe tenant identifier"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Company.
func (Company) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("subscription", Subscription.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("usage_events", UsageEvent.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("documents", Document.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("matrices", Matrix.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("workflows", Workflow.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("service_accounts", ServiceAccount.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Company.
func (Company) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("slug"),
	}
}
