// Package searchindex implements C7's indexing and hybrid-search half:
// bulk keyword+vector indexing of chunks and a scoped hybrid query that
// merges both by chunk id.
//
// Grounded on SPEC_FULL.md §4.7. No embedding-provider Go SDK and no
// vector-database client appear anywhere in the retrieved example pack
// (embeddings generation is explicitly out of scope per the spec's
// Non-goals); both the embedding HTTP clients below and the vector index
// (pkg/searchindex/index.go, a JSON column compared by in-process cosine
// similarity) are written against the standard library, documented in
// DESIGN.md.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/corpusforge/platform/pkg/config"
)

// EmbeddingProvider produces a vector embedding for a text, swappable by
// configuration (C7).
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// NewEmbeddingProvider builds the configured provider. cfg.APIKey is read
// once here; rotating the provider's credential (SPEC_FULL.md §4.7) means
// rebuilding the provider with a fresh config, same as llm.NewClient.
func NewEmbeddingProvider(cfg config.EmbeddingConfig) (EmbeddingProvider, error) {
	base := httpProvider{baseURL: cfg.BaseURL, model: cfg.Model, apiKey: cfg.APIKey}
	switch cfg.Provider {
	case config.EmbeddingProviderOpenAI:
		return &openAIProvider{base}, nil
	case config.EmbeddingProviderVoyage:
		return &voyageProvider{base}, nil
	default:
		return nil, fmt.Errorf("searchindex: unknown embedding provider %q", cfg.Provider)
	}
}

type httpProvider struct {
	baseURL string
	model   string
	apiKey  string
}

func (p httpProvider) Model() string { return p.model }

func (p httpProvider) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("searchindex: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("searchindex: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("searchindex: embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("searchindex: embedding provider returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("searchindex: decoding response: %w", err)
	}
	return nil
}

// openAIProvider adapts OpenAI's /embeddings request/response shape.
type openAIProvider struct{ httpProvider }

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	body := map[string]interface{}{"model": p.model, "input": text}
	if err := p.httpProvider.post(ctx, "/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("searchindex: openai returned no embeddings")
	}
	return out.Data[0].Embedding, nil
}

// voyageProvider adapts Voyage AI's /v1/embeddings request/response shape.
type voyageProvider struct{ httpProvider }

func (p *voyageProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	body := map[string]interface{}{"model": p.model, "input": []string{text}}
	if err := p.httpProvider.post(ctx, "/v1/embeddings", body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("searchindex: voyage returned no embeddings")
	}
	return out.Data[0].Embedding, nil
}
