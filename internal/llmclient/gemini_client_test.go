// internal/llmclient/gemini_client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/config"
)

func geminiResponse(text string) string {
	return `{"candidates": [{"content": {"parts": [{"text": ` + jsonString(text) + `}]}, "finishReason": "STOP"}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func testClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewGeminiClient(config.LLMConfig{
		Provider:          config.ProviderGemini,
		APIKey:            "test-key",
		Model:             "gemini-2.0-flash",
		Endpoint:          server.URL,
		APITimeout:        5 * time.Second,
		RequestsPerMinute: 600,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiClient(config.LLMConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestGeminiGenerate(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Contains(t, payload, "contents")
		assert.Contains(t, payload, "system_instruction")

		w.Write([]byte(geminiResponse(`{"action": "wait"}`)))
	})

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"action": "wait"}`, out)
}

func TestGeminiGenerateForceJSONFormat(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			GenerationConfig struct {
				ResponseMimeType string  `json:"response_mime_type"`
				Temperature      float64 `json:"temperature"`
				MaxOutputTokens  int     `json:"maxOutputTokens"`
			} `json:"generationConfig"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "application/json", payload.GenerationConfig.ResponseMimeType)
		assert.InDelta(t, 0.1, payload.GenerationConfig.Temperature, 1e-9)
		assert.Equal(t, 300, payload.GenerationConfig.MaxOutputTokens)

		w.Write([]byte(geminiResponse("{}")))
	})

	_, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
			MaxTokens:       300,
		},
	})
	require.NoError(t, err)
}

func TestGeminiGenerateRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(geminiResponse("recovered")))
	})

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestGeminiGenerateClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid request"}}`))
	})

	_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiGenerateBlockedContentIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`))
	})

	_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiGenerateNoCandidates(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	})

	_, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestNewClientFactory(t *testing.T) {
	t.Run("missing API key yields disabled client", func(t *testing.T) {
		client, err := NewClient(config.LLMConfig{Provider: config.ProviderGemini}, zap.NewNop())
		require.NoError(t, err)
		assert.False(t, client.Enabled())
		assert.IsType(t, DisabledClient{}, client)

		_, genErr := client.Generate(context.Background(), schemas.GenerationRequest{})
		assert.Error(t, genErr)
		assert.NoError(t, client.Close())
	})

	t.Run("gemini provider", func(t *testing.T) {
		client, err := NewClient(config.LLMConfig{
			Provider: config.ProviderGemini,
			APIKey:   "key",
			Model:    "gemini-2.0-flash",
		}, zap.NewNop())
		require.NoError(t, err)
		assert.True(t, client.Enabled())
	})

	t.Run("unknown provider errors", func(t *testing.T) {
		_, err := NewClient(config.LLMConfig{Provider: "openrouter", APIKey: "key"}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported LLM provider")
	})
}
