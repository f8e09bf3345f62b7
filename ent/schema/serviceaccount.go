package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ServiceAccount holds the schema definition for the ServiceAccount entity — an
// ephemeral credential holder for a single job.
//
// Grounded on backend/packages/auth/models/domain/service_account.py and
// backend/packages/auth/services/service_account_service.py (original_source). The
// plain key is never persisted; only api_key_hash (sha-256) is stored.
type ServiceAccount struct {
	ent.Schema
}

// Fields of the ServiceAccount.
func (ServiceAccount) Fields() []ent.Field {
	return []ent.Field{
		field.String("name"),
		field.String("description").
			Optional().
			Nillable(),
		field.Int("company_id"),
		field.String("api_key_hash").
			Unique(),
		field.Bool("is_active").
			Default(true),
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

// Indexes of the ServiceAccount.
func (ServiceAccount) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("api_key_hash").
			Annotations(entsql.IndexWhere("is_active AND NOT deleted")),
		index.Fields("company_id"),
	}
}
