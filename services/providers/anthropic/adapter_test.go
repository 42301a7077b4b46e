package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

const messageBody = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5-20250929",
	"content": [{"type": "text", "text": "{\"response\":\"Namaste!\",\"suggested\":[\"Book tickets\"]}"}],
	"stop_reason": "end_turn",
	"stop_sequence": null,
	"usage": {"input_tokens": 30, "output_tokens": 12}
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *AnthropicAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewAnthropicAdapter(providers.ProviderConfig{APIKey: "test-key", BaseURL: server.URL})
}

func TestBuilder(t *testing.T) {
	_, err := Builder(providers.ProviderConfig{})
	assert.Error(t, err)

	gen, err := Builder(providers.ProviderConfig{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", gen.Name())
	assert.Equal(t, defaultModel, gen.Model())
}

func TestAnthropicAdapter_Generate(t *testing.T) {
	var body map[string]any
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageBody))
	})

	req := providers.DefaultGenerationConfig().Apply(&providers.GenerateRequest{
		Messages: []models.ChatMessage{
			models.NewSystemMessage("You sell museum tickets."),
			models.NewUserMessage("Hi"),
			models.NewAssistantMessage(`{"response":"Hello","suggested":[]}`),
			models.NewUserMessage("Two adults"),
		},
		JSONMode: true,
	})

	resp, err := adapter.Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Replies, 1)
	assert.Equal(t, `{"response":"Namaste!","suggested":["Book tickets"]}`, resp.Replies[0].Content)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, 42, resp.Usage.Total())

	assert.Equal(t, float64(8192), body["max_tokens"])
	assert.Equal(t, float64(64), body["top_k"])
	assert.Contains(t, body, "temperature")
	assert.NotContains(t, body, "top_p")

	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "You sell museum tickets.", system[0].(map[string]any)["text"])

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 3)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])
}

func TestAnthropicAdapter_GenerateSystemOnly(t *testing.T) {
	var body map[string]any
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageBody))
	})

	_, err := adapter.Generate(context.Background(), &providers.GenerateRequest{
		Messages: []models.ChatMessage{models.NewSystemMessage("Greet the visitor.")},
	})
	require.NoError(t, err)

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestAnthropicAdapter_GenerateAssistantFirst(t *testing.T) {
	var body map[string]any
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageBody))
	})

	// Shape of every turn after /chat/new
	req := providers.DefaultGenerationConfig().Apply(&providers.GenerateRequest{
		Messages: []models.ChatMessage{
			models.NewSystemMessage("You sell museum tickets."),
			models.NewAssistantMessage(`{"response":"Namaste! How can I help?","suggested":["Book tickets"]}`),
			models.NewUserMessage("Two adults"),
		},
		JSONMode: true,
	})

	_, err := adapter.Generate(context.Background(), req)
	require.NoError(t, err)

	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)
	first := messages[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	content, ok := first["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
	assert.Equal(t, openingTurn, content[0].(map[string]any)["text"])
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])
	assert.Equal(t, "user", messages[2].(map[string]any)["role"])
	assert.NotContains(t, body, "top_p")
}

func TestAnthropicAdapter_GenerateTopPOnly(t *testing.T) {
	var body map[string]any
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageBody))
	})

	topP := 0.9
	_, err := adapter.Generate(context.Background(), &providers.GenerateRequest{
		Messages: []models.ChatMessage{models.NewUserMessage("Hi")},
		TopP:     &topP,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.9, body["top_p"])
	assert.NotContains(t, body, "temperature")
}

func TestAnthropicAdapter_GenerateErrors(t *testing.T) {
	calls := 0
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := adapter.Generate(context.Background(), &providers.GenerateRequest{
		Messages: []models.ChatMessage{models.NewUserMessage("Hi")},
	})

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "RATE_LIMITED", provErr.Code)
	assert.True(t, provErr.Retryable)
	assert.Equal(t, 1, calls)

	_, err = adapter.Generate(context.Background(), &providers.GenerateRequest{
		Messages: []models.ChatMessage{{Role: "tool"}},
	})
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "INVALID_REQUEST", provErr.Code)
}
