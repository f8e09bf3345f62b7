package config

// ExecutorBackend selects which runtime backend C1 uses to launch ephemeral
// QA-job execution containers.
type ExecutorBackend string

// Supported executor backends.
const (
	ExecutorBackendDocker  ExecutorBackend = "docker"
	ExecutorBackendCluster ExecutorBackend = "cluster"
)

// IsValid reports whether b is a supported executor backend.
func (b ExecutorBackend) IsValid() bool {
	switch b {
	case ExecutorBackendDocker, ExecutorBackendCluster:
		return true
	}
	return false
}

// ObjectStoreProvider selects the blob storage adapter used by the document,
// chunk, and workflow-output storage layout (C1/C7/C8).
type ObjectStoreProvider string

// Supported object store providers.
const (
	ObjectStoreProviderS3         ObjectStoreProvider = "s3"
	ObjectStoreProviderFilesystem ObjectStoreProvider = "filesystem"
)

// IsValid reports whether p is a supported object store provider.
func (p ObjectStoreProvider) IsValid() bool {
	switch p {
	case ObjectStoreProviderS3, ObjectStoreProviderFilesystem:
		return true
	}
	return false
}

// EmbeddingProvider selects the embedding-generation backend used when
// indexing chunks for the vector half of hybrid search (C7).
type EmbeddingProvider string

// Supported embedding providers.
const (
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
	EmbeddingProviderVoyage EmbeddingProvider = "voyage"
)

// IsValid reports whether p is a supported embedding provider.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderOpenAI, EmbeddingProviderVoyage:
		return true
	}
	return false
}
