package translator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/llm"
)

const chatOK = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "m",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "xin chào"}, "finish_reason": "stop"}]
}`

func chatServer(t *testing.T, status int, body string, check func(r *http.Request, payload map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)
		if check != nil {
			check(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIBackend_Generate(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusOK, chatOK, func(r *http.Request, payload map[string]any) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "gpt-test", payload["model"])
		msgs, _ := payload["messages"].([]any)
		assert.Len(t, msgs, 2)
	})

	b := NewOpenAIBackend(srv.URL+"/v1", 1000)
	got, err := b.Generate(context.Background(), "sk-test", GenerateRequest{Model: "gpt-test", System: "sys", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "xin chào", got)
}

func TestOpenAIBackend_RateLimit(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`, nil)

	b := NewOpenAIBackend(srv.URL+"/v1", 0)
	_, err := b.Generate(context.Background(), "sk-test", GenerateRequest{Model: "m", Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, errs.IsErrorType(err, errs.ErrProvider))
	assert.True(t, errs.IsRateLimited(err))
}

func TestCompatibleBackend_Generate(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusOK, chatOK, func(r *http.Request, payload map[string]any) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "vendor/model", payload["model"])
	})

	client, err := llm.NewClient(&llm.Config{APIURL: srv.URL, Model: "default", MaxTokens: 100, Timeout: 5})
	require.NoError(t, err)

	got, err := NewCompatibleBackend(client).Generate(context.Background(), "or-key", GenerateRequest{Model: "vendor/model", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "xin chào", got)
}

func TestCompatibleBackend_RateLimit(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, nil)
	client, err := llm.NewClient(&llm.Config{APIURL: srv.URL, Model: "m", MaxTokens: 100, Timeout: 5})
	require.NoError(t, err)

	_, err = NewCompatibleBackend(client).Generate(context.Background(), "k", GenerateRequest{Model: "m", Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, errs.IsRateLimited(err))
}

func TestGeminiBackend_Generate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"xin chào"}]},"finishReason":"STOP"}]}`))
	}))
	t.Cleanup(srv.Close)

	b := NewGeminiBackend(srv.URL, 100)
	got, err := b.Generate(context.Background(), "g-key", GenerateRequest{Model: "gemini-test", System: "sys", Prompt: "hi", Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "xin chào", got)
}

func TestGeminiRateLimited(t *testing.T) {
	t.Parallel()

	assert.True(t, geminiRateLimited(genai.APIError{Code: http.StatusTooManyRequests}))
	assert.False(t, geminiRateLimited(genai.APIError{Code: http.StatusInternalServerError}))
	assert.False(t, geminiRateLimited(errors.New("plain")))
}
