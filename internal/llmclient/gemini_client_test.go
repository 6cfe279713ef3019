package llmclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pagewright/internal/config"
)

const okReply = `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "{\"understood\": true}"}]}, "finishReason": "STOP"}],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4, "totalTokenCount": 16}
}`

func validPlannerConfig() config.PlannerConfig {
	return config.PlannerConfig{
		Enabled:     true,
		Provider:    ProviderGemini,
		Model:       "test-model",
		APIKey:      "test-api-key",
		Temperature: 0.1,
		MaxTokens:   256,
		Timeout:     5 * time.Second,
		MaxRetries:  2,
	}
}

// setupGeminiClient points a client at a test server and swaps in a fast backoff.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) (*GeminiClient, *observer.ObservedLogs) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	core, logs := observer.New(zap.InfoLevel)
	cfg := validPlannerConfig()
	cfg.Endpoint = server.URL

	client, err := NewGeminiClient(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	client.backoffFactory = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return client, logs
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	cfg := validPlannerConfig()
	cfg.APIKey = ""
	client, err := NewGeminiClient(context.Background(), cfg, nil)
	assert.Nil(t, client)
	assert.ErrorContains(t, err, "API key is required")
}

func TestGenerateSuccess(t *testing.T) {
	var body string
	client, logs := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent"), r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okReply)
	})

	reply, err := client.Generate(context.Background(), GenerationRequest{
		SystemPrompt: "Plan steps.",
		UserPrompt:   "Instruction: sign in",
		ForceJSON:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"understood": true}`, reply)

	assert.Contains(t, body, "Instruction: sign in")
	assert.Contains(t, body, "Plan steps.")
	assert.Contains(t, body, "application/json")

	entries := logs.FilterMessage("LLM generation complete (Gemini)").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 16, entries[0].ContextMap()["total_tokens"])
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`)
			return
		}
		_, _ = io.WriteString(w, okReply)
	})

	reply, err := client.Generate(context.Background(), GenerationRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestGenerateStopsOnPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	client, logs := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"code": 400, "message": "bad model", "status": "INVALID_ARGUMENT"}}`)
	})

	_, err := client.Generate(context.Background(), GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, logs.FilterMessage("Gemini API returned error status").Len())
}

func TestGenerateRejectsEmptyCandidates(t *testing.T) {
	client, _ := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates": []}`)
	})
	_, err := client.Generate(context.Background(), GenerationRequest{UserPrompt: "hi"})
	assert.ErrorContains(t, err, "no candidates")
}

func TestNewClientProviders(t *testing.T) {
	cfg := validPlannerConfig()
	gen, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, gen)

	cfg.Provider = "openai"
	_, err = NewClient(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported LLM provider")
}
