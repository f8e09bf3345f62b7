package config

import (
	"fmt"
	"time"
)

// ExecutorConfig selects and configures the C1 execution backend.
type ExecutorConfig struct {
	Backend     ExecutorBackend `yaml:"backend"`
	Image       string          `yaml:"image"`
	NetworkMode string          `yaml:"network_mode"`
	// ClusterAPIURL is only used when Backend is ExecutorBackendCluster.
	ClusterAPIURL string `yaml:"cluster_api_url"`
}

// Validate checks the executor configuration.
func (e ExecutorConfig) Validate() error {
	if !e.Backend.IsValid() {
		return fmt.Errorf("executor.backend: invalid value %q", e.Backend)
	}
	if e.Image == "" {
		return fmt.Errorf("executor.image is required")
	}
	if e.Backend == ExecutorBackendCluster && e.ClusterAPIURL == "" {
		return fmt.Errorf("executor.cluster_api_url is required when backend is cluster")
	}
	return nil
}

// ObjectStoreConfig configures the blob storage adapter (C1/C7/C8).
type ObjectStoreConfig struct {
	Provider ObjectStoreProvider `yaml:"provider"`
	Bucket   string              `yaml:"bucket"`
	Region   string              `yaml:"region"`
	Endpoint string              `yaml:"endpoint"`
	// RootDir is only used when Provider is ObjectStoreProviderFilesystem.
	RootDir string `yaml:"root_dir"`
}

// Validate checks the object store configuration.
func (o ObjectStoreConfig) Validate() error {
	if !o.Provider.IsValid() {
		return fmt.Errorf("object_store.provider: invalid value %q", o.Provider)
	}
	if o.Provider == ObjectStoreProviderS3 && o.Bucket == "" {
		return fmt.Errorf("object_store.bucket is required when provider is s3")
	}
	if o.Provider == ObjectStoreProviderFilesystem && o.RootDir == "" {
		return fmt.Errorf("object_store.root_dir is required when provider is filesystem")
	}
	return nil
}

// EmbeddingConfig configures the embedding-generation backend (C7). APIKey
// is expected to arrive via {{.EMBEDDING_API_KEY}}-style environment
// expansion, never checked into YAML, same convention as LLMConfig.APIKey.
type EmbeddingConfig struct {
	Provider EmbeddingProvider `yaml:"provider"`
	Model    string            `yaml:"model"`
	BaseURL  string            `yaml:"base_url"`
	APIKey   string            `yaml:"api_key"`
}

// Validate checks the embedding configuration.
func (e EmbeddingConfig) Validate() error {
	if !e.Provider.IsValid() {
		return fmt.Errorf("embedding.provider: invalid value %q", e.Provider)
	}
	if e.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	return nil
}

// RedisConfig configures the distributed-lock and streams-queue substrate (C9).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Validate checks the Redis configuration.
func (r RedisConfig) Validate() error {
	if r.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	return nil
}

// LLMConfig configures the chat-completions client the QA engine calls for
// answer generation (C5/C6). APIKey is expected to arrive via
// {{.LLM_API_KEY}}-style environment expansion, never checked into YAML.
type LLMConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate checks the LLM configuration.
func (l LLMConfig) Validate() error {
	if l.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	return nil
}

// WorkflowPhaseConfig bounds each phase of the C2 Launch -> Poll -> Extract
// -> Cleanup orchestration run by pkg/workflow for WorkflowExecution rows.
type WorkflowPhaseConfig struct {
	LaunchTimeout  time.Duration `yaml:"launch_timeout"`
	StatusTimeout  time.Duration `yaml:"status_timeout"`
	ExtractTimeout time.Duration `yaml:"extract_timeout"`
	CleanupTimeout time.Duration `yaml:"cleanup_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxWait        time.Duration `yaml:"max_wait"`
}

// Validate checks the workflow phase configuration.
func (w WorkflowPhaseConfig) Validate() error {
	if w.LaunchTimeout <= 0 {
		return fmt.Errorf("workflow.launch_timeout must be positive")
	}
	if w.StatusTimeout <= 0 {
		return fmt.Errorf("workflow.status_timeout must be positive")
	}
	if w.ExtractTimeout <= 0 {
		return fmt.Errorf("workflow.extract_timeout must be positive")
	}
	if w.CleanupTimeout <= 0 {
		return fmt.Errorf("workflow.cleanup_timeout must be positive")
	}
	if w.PollInterval <= 0 {
		return fmt.Errorf("workflow.poll_interval must be positive")
	}
	if w.MaxWait <= 0 {
		return fmt.Errorf("workflow.max_wait must be positive")
	}
	return nil
}

// RetentionConfig tunes the background retention sweep (pkg/cleanup).
type RetentionConfig struct {
	// WorkflowExecutionRetentionDays is how long a completed/failed
	// WorkflowExecution is kept before being soft-deleted.
	WorkflowExecutionRetentionDays int `yaml:"workflow_execution_retention_days"`
	// CredentialTTL bounds how long a ServiceAccount may remain active
	// without being explicitly revoked by its owning job.
	CredentialTTL time.Duration `yaml:"credential_ttl"`
	// SweepInterval is how often the retention loop runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Validate checks the retention configuration.
func (r RetentionConfig) Validate() error {
	if r.WorkflowExecutionRetentionDays <= 0 {
		return fmt.Errorf("retention.workflow_execution_retention_days must be positive")
	}
	if r.CredentialTTL <= 0 {
		return fmt.Errorf("retention.credential_ttl must be positive")
	}
	if r.SweepInterval <= 0 {
		return fmt.Errorf("retention.sweep_interval must be positive")
	}
	return nil
}

// Config is the top-level, file-loaded system configuration: everything that
// is not per-tenant data (companies, subscriptions, documents, ...) and lives
// instead in the deployment's own YAML/environment.
type Config struct {
	Queue         *QueueConfig          `yaml:"queue"`
	Executor      ExecutorConfig        `yaml:"executor"`
	ObjectStore   ObjectStoreConfig     `yaml:"object_store"`
	Embedding     EmbeddingConfig       `yaml:"embedding"`
	Redis         RedisConfig           `yaml:"redis"`
	LLM           LLMConfig             `yaml:"llm"`
	Retention     RetentionConfig       `yaml:"retention"`
	HybridWeights HybridWeights         `yaml:"hybrid_weights"`
	TierLimits    map[string]TierLimits `yaml:"tier_limits"`
	WorkflowPhase WorkflowPhaseConfig   `yaml:"workflow_phase"`
}

// Default returns a Config populated entirely with built-in defaults. Loader
// merges a loaded YAML file over a copy of this value.
func Default() *Config {
	return &Config{
		Queue: DefaultQueueConfig(),
		Executor: ExecutorConfig{
			Backend:     ExecutorBackendDocker,
			Image:       "corpusforge/qa-executor:latest",
			NetworkMode: "bridge",
		},
		ObjectStore: ObjectStoreConfig{
			Provider: ObjectStoreProviderFilesystem,
			RootDir:  "./data/objects",
		},
		Embedding: EmbeddingConfig{
			Provider: EmbeddingProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		LLM: LLMConfig{
			Model:   "gpt-4o-mini",
			Timeout: 120 * time.Second,
		},
		Retention: RetentionConfig{
			WorkflowExecutionRetentionDays: 90,
			CredentialTTL:                  24 * time.Hour,
			SweepInterval:                  1 * time.Hour,
		},
		HybridWeights: DefaultHybridWeights(),
		TierLimits:    DefaultTierLimits(),
		WorkflowPhase: WorkflowPhaseConfig{
			LaunchTimeout:  2 * time.Minute,
			StatusTimeout:  30 * time.Second,
			ExtractTimeout: 5 * time.Minute,
			CleanupTimeout: 1 * time.Minute,
			PollInterval:   30 * time.Second,
			MaxWait:        6 * time.Hour,
		},
	}
}

// Validate checks the entire configuration tree for internal consistency.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Executor.Validate(); err != nil {
		return err
	}
	if err := c.ObjectStore.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Retention.Validate(); err != nil {
		return err
	}
	if err := c.WorkflowPhase.Validate(); err != nil {
		return err
	}
	if len(c.TierLimits) == 0 {
		return fmt.Errorf("tier_limits must not be empty")
	}
	return nil
}
