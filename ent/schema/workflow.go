package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Workflow holds the schema definition for the Workflow entity.
//
// Grounded on backend/packages/workflows/models/domain/workflow.py (original_source).
type Workflow struct {
	ent.Schema
}

// Fields of the Workflow.
func (Workflow) Fields() []ent.Field {
	return []ent.Field{
		field.Int("company_id"),
		field.String("name"),
		field.String("description").
			Optional().
			Nillable(),
		field.Enum("trigger_type").
			Values("manual").
			Default("manual"),
		field.Int("workspace_id"),
		field.Enum("output_type").
			Values("powerpoint", "markdown", "excel", "docx", "pdf"),
	}
}

// Edges of the Workflow.
func (Workflow) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("company", Company.Type).
			Ref("workflows").
			Field("company_id").
			Unique().
			Required(),
		edge.To("executions", WorkflowExecution.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Workflow.
func (Workflow) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("company_id"),
	}
}

// WorkflowExecution holds the schema definition for one run of a Workflow.
//
// Grounded on backend/packages/workflows/models/domain/execution.py
// (original_source).
type WorkflowExecution struct {
	ent.Schema
}

// Fields of the WorkflowExecution.
func (WorkflowExecution) Fields() []ent.Field {
	return []ent.Field{
		field.Int("workflow_id"),
		field.Int("company_id"),
		field.String("trigger_type").
			Optional().
			Nillable(),
		field.Time("started_at"),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Enum("status").
			Values("pending", "running", "completed", "failed").
			Default("pending"),
		field.Int64("output_size_bytes").
			Optional().
			Nillable(),
		field.String("error_message").
			Optional().
			Nillable(),
		field.JSON("execution_log", map[string]interface{}{}).
			Optional(),
		field.Bool("deleted").
			Default(false),
		field.String("worker_id").
			Optional().
			Nillable().
			Comment("id of the worker pool currently holding this execution's claim"),
		field.Time("heartbeat_at").
			Optional().
			Nillable().
			Comment("last heartbeat while running; stale past a threshold marks the claim orphaned"),
	}
}

// Edges of the WorkflowExecution.
func (WorkflowExecution) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("workflow", Workflow.Type).
			Ref("executions").
			Field("workflow_id").
			Unique().
			Required(),
		edge.To("files", ExecutionFile.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the WorkflowExecution.
func (WorkflowExecution) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("workflow_id"),
		index.Fields("status"),
	}
}

// ExecutionFile holds the schema definition for one file produced by a
// WorkflowExecution.
//
// Grounded on backend/packages/workflows/models/domain/execution_file.py
// (original_source).
type ExecutionFile struct {
	ent.Schema
}

// Fields of the ExecutionFile.
func (ExecutionFile) Fields() []ent.Field {
	return []ent.Field{
		field.Int("execution_id"),
		field.Int("company_id"),
		field.Enum("file_type").
			Values("output", "scratch"),
		field.String("name"),
		field.String("storage_path"),
		field.Int64("file_size"),
		field.String("mime_type").
			Optional().
			Nillable(),
	}
}

// Edges of the ExecutionFile.
func (ExecutionFile) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("execution", WorkflowExecution.Type).
			Ref("files").
			Field("execution_id").
			Unique().
			Required(),
	}
}

// Indexes of the ExecutionFile.
func (ExecutionFile) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("execution_id"),
	}
}
