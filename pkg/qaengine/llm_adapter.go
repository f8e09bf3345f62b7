package qaengine

import (
	"context"
	"fmt"

	"github.com/corpusforge/platform/pkg/llm"
)

// chatLLMAdapter adapts the synchronous llm.Client to the LLMClient
// interface the executor needs.
type chatLLMAdapter struct {
	client *llm.Client
}

// NewLLMAdapter wraps an llm.Client for use by an Executor.
func NewLLMAdapter(client *llm.Client) LLMClient {
	return &chatLLMAdapter{client: client}
}

func (a *chatLLMAdapter) Answer(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	return resp.Content, nil
}
