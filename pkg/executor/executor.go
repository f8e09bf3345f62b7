package executor

import (
	"fmt"

	"github.com/corpusforge/platform/pkg/config"
)

// New constructs the Backend selected by cfg.Backend.
func New(cfg config.ExecutorConfig) (Backend, error) {
	switch cfg.Backend {
	case config.ExecutorBackendDocker:
		return NewDockerBackend(cfg.NetworkMode)
	case config.ExecutorBackendCluster:
		return NewClusterBackend(NewHTTPClusterAPI(cfg.ClusterAPIURL)), nil
	default:
		return nil, fmt.Errorf("executor: unsupported backend %q", cfg.Backend)
	}
}
