package config

// HybridWeights controls how keyword and vector search scores are blended when
// ranking chunks for citation grounding (C6/C7). Resolves the hybrid-search
// weighting left unspecified upstream: exposed as a tunable rather than a
// hardcoded constant, defaulting to an even split.
type HybridWeights struct {
	Keyword float64 `yaml:"keyword"`
	Vector  float64 `yaml:"vector"`
}

// DefaultHybridWeights returns the built-in 0.5/0.5 keyword/vector split.
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Keyword: 0.5, Vector: 0.5}
}

// TierLimits holds the per-billing-cycle quota ceilings for one subscription
// tier (C4). Values mirror the subscription-tier table.
type TierLimits struct {
	CellOperations   int   `yaml:"cell_operations"`
	AgenticQA        int   `yaml:"agentic_qa"`
	Workflows        int   `yaml:"workflows"`
	StorageBytes     int64 `yaml:"storage_bytes"`
	AgenticChunking  int   `yaml:"agentic_chunking"`
	Documents        int   `yaml:"documents"`
}

// DefaultTierLimits returns the built-in quota table, keyed by tier name. It
// is the canonical source other packages (pkg/billing) resolve tier
// ceilings against.
func DefaultTierLimits() map[string]TierLimits {
	const gb = 1 << 30
	const mb = 1 << 20
	return map[string]TierLimits{
		"free": {
			CellOperations: 100, AgenticQA: 5, Workflows: 1,
			StorageBytes: 100 * mb, AgenticChunking: 0, Documents: 10,
		},
		"starter": {
			CellOperations: 500, AgenticQA: 25, Workflows: 5,
			StorageBytes: 500 * mb, AgenticChunking: 25, Documents: 50,
		},
		"professional": {
			CellOperations: 2500, AgenticQA: 150, Workflows: 25,
			StorageBytes: 2 * gb, AgenticChunking: 200, Documents: 250,
		},
		"business": {
			CellOperations: 10000, AgenticQA: 400, Workflows: 50,
			StorageBytes: 10 * gb, AgenticChunking: 500, Documents: 1000,
		},
		"enterprise": {
			CellOperations: 100000, AgenticQA: 5000, Workflows: 500,
			StorageBytes: 50 * gb, AgenticChunking: 999999, Documents: 10000,
		},
	}
}
