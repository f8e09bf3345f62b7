package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates GIN indexes for PostgreSQL: full-text indexes on
// citation quotes and on chunk_indices content (used by the keyword half of
// the hybrid document search), and JSONB indexes on chunk metadata and
// workflow execution logs.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_citations_quote_text_gin
		ON citations USING gin(to_tsvector('english', quote_text))`)
	if err != nil {
		return fmt.Errorf("failed to create quote_text GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_chunks_metadata_gin
		ON chunks USING gin(chunk_metadata)`)
	if err != nil {
		return fmt.Errorf("failed to create chunk_metadata GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_workflow_executions_log_gin
		ON workflow_executions USING gin(execution_log)`)
	if err != nil {
		return fmt.Errorf("failed to create execution_log GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_chunk_indices_content_gin
		ON chunk_indices USING gin(to_tsvector('english', content))`)
	if err != nil {
		return fmt.Errorf("failed to create chunk_indices content GIN index: %w", err)
	}

	return nil
}
