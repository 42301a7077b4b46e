package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

const (
	providerName = "openai"

	// defaultBaseURL is Gemini's OpenAI-compatible endpoint
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultModel   = "gemini-1.5-flash"
)

// OpenAIAdapter implements providers.Generator over any OpenAI-compatible
// chat completions API
type OpenAIAdapter struct {
	config providers.ProviderConfig
	client openaisdk.Client
}

// NewOpenAIAdapter creates a new OpenAI-compatible adapter. SDK retries are
// disabled; callers decide what to do with transport failures.
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = trimBaseURL(config.BaseURL)
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = providers.DefaultProviderConfig().Timeout
	}

	return &OpenAIAdapter{
		config: config,
		client: openaisdk.NewClient(
			option.WithBaseURL(config.BaseURL),
			option.WithAPIKey(config.APIKey),
			option.WithMaxRetries(0),
			option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
		),
	}
}

// Builder adapts NewOpenAIAdapter to providers.ProviderBuilder
func Builder(config providers.ProviderConfig) (providers.Generator, error) {
	return NewOpenAIAdapter(config), nil
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return providerName
}

// Model returns the configured model
func (a *OpenAIAdapter) Model() string {
	return a.config.Model
}

// Generate sends a chat completion request
func (a *OpenAIAdapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, providers.NewProviderError(providerName, "INVALID_REQUEST", "messages cannot be empty", 0, false, nil)
	}

	params, err := a.buildParams(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	replies := make([]models.ChatMessage, 0, len(completion.Choices))
	for _, choice := range completion.Choices {
		replies = append(replies, models.NewAssistantMessage(choice.Message.Content))
	}
	if len(replies) == 0 {
		return nil, providers.NewProviderError(providerName, "EMPTY_RESPONSE", "no choices in completion", 0, true, nil)
	}

	return &providers.GenerateResponse{
		Replies:  replies,
		Model:    completion.Model,
		Provider: providerName,
		Usage: providers.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		Latency: time.Since(start),
	}, nil
}

// IsAvailable checks that the models endpoint answers
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	_, err := a.client.Models.List(ctx)
	return err == nil
}

// buildParams converts a generate request into chat completion params.
// The chat completions API has no top_k, so TopK is not sent.
func (a *OpenAIAdapter) buildParams(req *providers.GenerateRequest) (openaisdk.ChatCompletionNewParams, error) {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case models.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(msg.Content))
		case models.RoleUser:
			messages = append(messages, openaisdk.UserMessage(msg.Content))
		case models.RoleAssistant:
			messages = append(messages, openaisdk.AssistantMessage(msg.Content))
		default:
			return openaisdk.ChatCompletionNewParams{}, providers.NewProviderError(
				providerName, "INVALID_REQUEST", fmt.Sprintf("message %d has unknown role %q", i, msg.Role), 0, false, nil)
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages: messages,
		Model:    openaisdk.ChatModel(model),
	}
	if req.Temperature != nil {
		params.Temperature = openaisdk.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openaisdk.Float(*req.TopP)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(req.MaxTokens))
	}
	if req.JSONMode {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openaisdk.ResponseFormatJSONObjectParam{},
		}
	}
	return params, nil
}

// classify maps SDK errors to provider errors
func classify(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return providers.ClassifyStatus(providerName, apiErr.StatusCode, err)
	}
	return providers.ClassifyTransport(providerName, err)
}

// trimBaseURL normalizes a base URL so the SDK appends paths correctly
func trimBaseURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/"
}
