package storagelayout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "company/7/documents/42/original/report.pdf", DocumentOriginal(7, 42, "report.pdf"))
	assert.Equal(t, "company/7/documents/42/extracted.md", DocumentExtracted(7, 42))
	assert.Equal(t, "company/7/documents/42/chunks/chunk_001.md", ChunkBody(7, 42, "chunk_001"))
	assert.Equal(t, "company/7/documents/42/chunks/chunk_001.meta.json", ChunkMeta(7, 42, "chunk_001"))
	assert.Equal(t, "company/7/documents/42/chunks/manifest.json", ChunkManifest(7, 42))
	assert.Equal(t, "company/7/documents/42/chunks/", ChunkPrefix(7, 42))
	assert.Equal(t, "company/7/workflows/3/executions/9/result.json", WorkflowExecutionOutput(7, 3, 9, "result.json"))
	assert.Equal(t, "company/7/workflows/3/executions/9/", WorkflowExecutionPrefix(7, 3, 9))
}
