package translator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend uses the official OpenAI chat completion API. A custom
// base URL points it at compatible gateways.
type OpenAIBackend struct {
	baseURL   string
	maxTokens int
}

func NewOpenAIBackend(baseURL string, maxTokens int) *OpenAIBackend {
	return &OpenAIBackend{baseURL: strings.TrimRight(baseURL, "/"), maxTokens: maxTokens}
}

func (b *OpenAIBackend) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if b.baseURL != "" {
		cfg.BaseURL = b.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (b *OpenAIBackend) Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.maxTokens
	}

	resp, err := b.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", providerFailure(ProviderOpenAI, err, openAIRateLimited(err))
	}
	if len(resp.Choices) == 0 {
		return "", providerFailure(ProviderOpenAI, errors.New("no choices in response"), false)
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
