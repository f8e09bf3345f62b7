package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Subscription holds the schema definition for the Subscription entity.
//
// Grounded on backend/packages/billing/models/domain/subscription.py and enums.py
// (original_source). At most one subscription row per company: migration 000001
// declares a unique index on company_id that counts soft-deleted rows too (this
// schema declares only a plain index), and pkg/billing loads a company's
// non-deleted subscription with Only.
type Subscription struct {
	ent.Schema
}

// Fields of the Subscription.
func (Subscription) Fields() []ent.Field {
	return []ent.Field{
		field.Int("company_id"),
		field.Enum("tier").
			Values("free", "starter", "professional", "business", "enterprise").
			Default("free"),
		field.Enum("status").
			Values("active", "past_due", "suspended", "cancelled").
			Default("active"),
		field.Time("period_start"),
		field.Time("period_end"),
		field.Enum("payment_provider").
			Values("stripe", "manual").
			Default("manual"),
		field.String("external_subscription_id").
			Optional().
			Nillable(),
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

// Edges of the Subscription.
func (Subscription) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("company", Company.Type).
			Ref("subscription").
			Field("company_id").
			Unique().
			Required(),
	}
}

// Indexes of the Subscription.
func (Subscription) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company_id"),
		index.Fields("status"),
		index.Fields("period_end"),
	}
}
