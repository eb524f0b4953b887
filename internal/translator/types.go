package translator

import (
	"context"
)

// Provider tags stored on credentials.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// GenerateRequest is one single-turn call to a backend.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Backend talks to one provider. The API key is chosen per call by the
// credential pool.
type Backend interface {
	Generate(ctx context.Context, apiKey string, req GenerateRequest) (string, error)
}

// Models names the model used for each operation.
type Models struct {
	Translate string `json:"translate"`
	Review    string `json:"review"`
	Fix       string `json:"fix"`
	Extract   string `json:"extract"`
}

var DefaultModels = Models{
	Translate: "gemini-2.5-pro",
	Review:    "gemini-2.5-flash",
	Fix:       "gemini-2.0-flash",
	Extract:   "gemini-2.5-pro",
}

type TranslateRequest struct {
	Source string
	// Glossary is newline-joined "source → target" lines.
	Glossary string
	// Preceding holds excerpts of earlier translated chapters.
	Preceding      string
	SourceLanguage string
}

type TranslateResult struct {
	Title   string
	Content string
}

type ReviewResult struct {
	Score  float64
	Report string
	// Scored is false when the reply held no percentage.
	Scored bool
}

// FixRequest asks for a translation with leftover foreign script rewritten.
type FixRequest struct {
	SourceTitle      string
	SourceContent    string
	TitleTranslation string
	Translation      string
	Glossary         string
	SourceLanguage   string
}
