package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// QAJob holds the schema definition for the QAJob entity — one processing attempt of
// a MatrixCell.
//
// Grounded on the teacher's AlertSession worker-claim shape (status enum, heartbeat,
// pod_id columns) generalized to the QA-job domain.
type QAJob struct {
	ent.Schema
}

// Fields of the QAJob.
func (QAJob) Fields() []ent.Field {
	return []ent.Field{
		field.Int("matrix_cell_id"),
		field.Int("company_id"),
		field.Enum("status").
			Values("queued", "processing", "completed", "failed").
			Default("queued"),
		field.String("error_message").
			Optional().
			Nillable(),
		field.String("service_account_id").
			Optional().
			Nillable(),
		field.String("execution_container_id").
			Optional().
			Nillable(),
		field.String("worker_id").
			Optional().
			Nillable(),
		field.Time("heartbeat_at").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Indexes of the QAJob.
func (QAJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "created_at"),
		index.Fields("matrix_cell_id"),
		index.Fields("status", "heartbeat_at"),
	}
}
