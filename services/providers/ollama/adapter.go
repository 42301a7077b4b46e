package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1:latest"
)

// OllamaAdapter implements providers.Generator over a local Ollama server
type OllamaAdapter struct {
	config providers.ProviderConfig
	client *api.Client
}

// NewOllamaAdapter creates a new Ollama adapter
func NewOllamaAdapter(config providers.ProviderConfig) (*OllamaAdapter, error) {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = providers.DefaultProviderConfig().Timeout
	}

	client, err := NewClient(config.BaseURL, config.Timeout)
	if err != nil {
		return nil, err
	}

	return &OllamaAdapter{
		config: config,
		client: client,
	}, nil
}

// NewClient creates an Ollama API client for the given server URL
func NewClient(baseURL string, timeout time.Duration) (*api.Client, error) {
	parsedURL, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	return api.NewClient(parsedURL, &http.Client{Timeout: timeout}), nil
}

// Builder adapts NewOllamaAdapter to providers.ProviderBuilder
func Builder(config providers.ProviderConfig) (providers.Generator, error) {
	return NewOllamaAdapter(config)
}

func (a *OllamaAdapter) Name() string  { return providerName }
func (a *OllamaAdapter) Model() string { return a.config.Model }

// Generate sends a non-streaming chat request
func (a *OllamaAdapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, providers.NewProviderError(providerName, "INVALID_REQUEST", "messages cannot be empty", 0, false, nil)
	}

	chatReq, err := a.buildRequest(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		content strings.Builder
		final   api.ChatResponse
	)
	err = a.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	model := final.Model
	if model == "" {
		model = chatReq.Model
	}

	return &providers.GenerateResponse{
		Replies:  []models.ChatMessage{models.NewAssistantMessage(content.String())},
		Model:    model,
		Provider: providerName,
		Usage: providers.Usage{
			PromptTokens:     final.PromptEvalCount,
			CompletionTokens: final.EvalCount,
		},
		Latency: time.Since(start),
	}, nil
}

// IsAvailable checks that the Ollama server responds
func (a *OllamaAdapter) IsAvailable(ctx context.Context) bool {
	return a.client.Heartbeat(ctx) == nil
}

func (a *OllamaAdapter) buildRequest(req *providers.GenerateRequest) (*api.ChatRequest, error) {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	messages := make([]api.Message, 0, len(req.Messages))
	for i, msg := range req.Messages {
		if !msg.Role.IsValid() {
			return nil, providers.NewProviderError(
				providerName, "INVALID_REQUEST", fmt.Sprintf("message %d has unknown role %q", i, msg.Role), 0, false, nil)
		}
		messages = append(messages, api.Message{Role: string(msg.Role), Content: msg.Content})
	}

	options := make(map[string]any)
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		options["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		options["top_k"] = *req.TopK
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
	if req.JSONMode {
		chatReq.Format = json.RawMessage(`"json"`)
	}
	return chatReq, nil
}

func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return providers.ClassifyStatus(providerName, statusErr.StatusCode, err)
	}
	return providers.ClassifyTransport(providerName, err)
}
