package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UsageEvent holds the schema definition for the UsageEvent entity.
//
// Append-only ledger. Grounded on
// backend/packages/billing/models/domain/usage.py (original_source). No update or
// delete operation is ever generated against this entity from pkg/billing.
type UsageEvent struct {
	ent.Schema
}

// Fields of the UsageEvent.
func (UsageEvent) Fields() []ent.Field {
	return []ent.Field{
		field.Int("company_id"),
		field.Int("user_id").
			Optional().
			Nillable(),
		field.Enum("event_type").
			Values("cell_operation", "agentic_qa", "workflow", "storage_upload", "agentic_chunking"),
		field.Int("quantity").
			Default(1),
		field.Int64("file_size_bytes").
			Optional().
			Nillable().
			Comment("Set only for storage_upload events"),
		field.JSON("event_metadata", map[string]interface{}{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the UsageEvent.
func (UsageEvent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("company", Company.Type).
			Ref("usage_events").
			Field("company_id").
			Unique().
			Required(),
	}
}

// Indexes of the UsageEvent.
func (UsageEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company_id", "event_type", "created_at"),
	}
}
