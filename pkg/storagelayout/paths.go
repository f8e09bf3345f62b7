// Package storagelayout centralizes every object-store key this platform
// writes, so no call site hand-assembles a "company/{c}/..." path string.
//
// Grounded on SPEC_FULL.md §6's storage layout and ent/schema/{chunk,chunkset,
// document}.go's own s3_key/storage_key doc comments.
package storagelayout

import "fmt"

// DocumentOriginal is the key for an uploaded document's original bytes.
func DocumentOriginal(companyID, documentID int, filename string) string {
	return fmt.Sprintf("company/%d/documents/%d/original/%s", companyID, documentID, filename)
}

// DocumentExtracted is the key for a document's extracted markdown.
func DocumentExtracted(companyID, documentID int) string {
	return fmt.Sprintf("company/%d/documents/%d/extracted.md", companyID, documentID)
}

// ChunkBody is the key for one chunk's markdown body.
func ChunkBody(companyID, documentID int, chunkID string) string {
	return fmt.Sprintf("company/%d/documents/%d/chunks/%s.md", companyID, documentID, chunkID)
}

// ChunkMeta is the key for one chunk's metadata JSON, stored alongside its body.
func ChunkMeta(companyID, documentID int, chunkID string) string {
	return fmt.Sprintf("company/%d/documents/%d/chunks/%s.meta.json", companyID, documentID, chunkID)
}

// ChunkManifest is the key for a chunk set's manifest, written last so a
// reader never observes a chunk set with content but no manifest.
func ChunkManifest(companyID, documentID int) string {
	return fmt.Sprintf("company/%d/documents/%d/chunks/manifest.json", companyID, documentID)
}

// ChunkPrefix is the common prefix under which a document's chunk bodies,
// metadata, and manifest live — the value persisted as ChunkSet.s3_prefix.
func ChunkPrefix(companyID, documentID int) string {
	return fmt.Sprintf("company/%d/documents/%d/chunks/", companyID, documentID)
}

// WorkflowExecutionOutput is the key for one output file of one workflow
// execution.
func WorkflowExecutionOutput(companyID, workflowID, executionID int, filename string) string {
	return fmt.Sprintf("company/%d/workflows/%d/executions/%d/%s", companyID, workflowID, executionID, filename)
}

// WorkflowExecutionPrefix is the common prefix for one execution's outputs.
func WorkflowExecutionPrefix(companyID, workflowID, executionID int) string {
	return fmt.Sprintf("company/%d/workflows/%d/executions/%d/", companyID, workflowID, executionID)
}
