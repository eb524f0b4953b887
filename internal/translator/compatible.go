package translator

import (
	"context"

	"github.com/MimeLyc/contextual-novel-translator/internal/llm"
)

// CompatibleBackend talks to any OpenAI-style chat endpoint, OpenRouter
// included, through the in-house HTTP client.
type CompatibleBackend struct {
	client *llm.Client
}

func NewCompatibleBackend(client *llm.Client) *CompatibleBackend {
	return &CompatibleBackend{client: client}
}

func (b *CompatibleBackend) Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error) {
	opts := llm.NewChatCompletionOptions().
		WithAPIKey(apiKey).
		WithModel(req.Model).
		WithTemperature(float64(req.Temperature))
	if req.MaxTokens > 0 {
		opts = opts.WithMaxTokens(req.MaxTokens)
	}

	text, err := b.client.SimpleChat(ctx, req.Prompt, req.System, opts)
	if err != nil {
		return "", providerFailure(ProviderOpenRouter, err, llm.IsRateLimited(err))
	}
	return text, nil
}
