package translator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API. One client is kept per key.
type GeminiBackend struct {
	baseURL   string
	maxTokens int
	clients   sync.Map
}

func NewGeminiBackend(baseURL string, maxTokens int) *GeminiBackend {
	return &GeminiBackend{baseURL: baseURL, maxTokens: maxTokens}
}

func (b *GeminiBackend) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	if c, ok := b.clients.Load(apiKey); ok {
		return c.(*genai.Client), nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if b.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	actual, _ := b.clients.LoadOrStore(apiKey, c)
	return actual.(*genai.Client), nil
}

// Novels trip the default safety filters on violence and romance scenes.
var geminiSafety = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdOff},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdOff},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdOff},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdOff},
}

func (b *GeminiBackend) Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error) {
	c, err := b.client(ctx, apiKey)
	if err != nil {
		return "", providerFailure(ProviderGemini, err, false)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(req.Temperature),
		SafetySettings: geminiSafety,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.maxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	resp, err := c.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", providerFailure(ProviderGemini, err, geminiRateLimited(err))
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", providerFailure(ProviderGemini, errors.New("empty response"), false)
	}
	return text, nil
}

func geminiRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}
	return false
}
