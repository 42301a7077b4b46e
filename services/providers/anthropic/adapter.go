package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

const (
	providerName     = "anthropic"
	defaultBaseURL   = "https://api.anthropic.com/"
	defaultMaxTokens = 8192

	// openingTurn leads conversations that would otherwise start with the
	// assistant or hold only system messages; the messages API wants a user first
	openingTurn = "Hello"
)

var defaultModel = string(anthropicsdk.ModelClaudeSonnet4_5_20250929)

// AnthropicAdapter implements providers.Generator over the Anthropic messages API
type AnthropicAdapter struct {
	config providers.ProviderConfig
	client *anthropicsdk.Client
}

// NewAnthropicAdapter creates a new Anthropic adapter with SDK retries disabled
func NewAnthropicAdapter(config providers.ProviderConfig) *AnthropicAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = providers.DefaultProviderConfig().Timeout
	}

	client := anthropicsdk.NewClient(
		option.WithBaseURL(strings.TrimRight(config.BaseURL, "/")+"/"),
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	)

	return &AnthropicAdapter{
		config: config,
		client: &client,
	}
}

// Builder adapts NewAnthropicAdapter to providers.ProviderBuilder
func Builder(config providers.ProviderConfig) (providers.Generator, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	return NewAnthropicAdapter(config), nil
}

func (a *AnthropicAdapter) Name() string  { return providerName }
func (a *AnthropicAdapter) Model() string { return a.config.Model }

// Generate sends the conversation to the messages API. System messages are
// folded into the request's system blocks. The messages API has no JSON mode;
// the system prompt carries the output format instead.
func (a *AnthropicAdapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, providers.NewProviderError(providerName, "INVALID_REQUEST", "messages cannot be empty", 0, false, nil)
	}

	params, err := a.buildParams(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &providers.GenerateResponse{
		Replies:  []models.ChatMessage{models.NewAssistantMessage(text.String())},
		Model:    string(message.Model),
		Provider: providerName,
		Usage: providers.Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
		},
		Latency: time.Since(start),
	}, nil
}

// IsAvailable checks that the models endpoint answers
func (a *AnthropicAdapter) IsAvailable(ctx context.Context) bool {
	_, err := a.client.Models.List(ctx, anthropicsdk.ModelListParams{})
	return err == nil
}

func (a *AnthropicAdapter) buildParams(req *providers.GenerateRequest) (anthropicsdk.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	var system []anthropicsdk.TextBlockParam
	messages := make([]anthropicsdk.MessageParam, 0, len(req.Messages)+1)
	opensWithUser := false
	for i, msg := range req.Messages {
		if msg.Role == models.RoleUser && len(messages) == 0 {
			opensWithUser = true
		}
		switch msg.Role {
		case models.RoleSystem:
			system = append(system, anthropicsdk.TextBlockParam{Text: msg.Content})
		case models.RoleUser:
			messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))
		case models.RoleAssistant:
			messages = append(messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content)))
		default:
			return anthropicsdk.MessageNewParams{}, providers.NewProviderError(
				providerName, "INVALID_REQUEST", fmt.Sprintf("message %d has unknown role %q", i, msg.Role), 0, false, nil)
		}
	}
	if !opensWithUser {
		messages = append([]anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(openingTurn)),
		}, messages...)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
		System:    system,
	}
	if req.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*req.Temperature)
	}
	// Current models reject temperature and top_p together
	if req.TopP != nil && req.Temperature == nil {
		params.TopP = anthropicsdk.Float(*req.TopP)
	}
	if req.TopK != nil {
		params.TopK = anthropicsdk.Int(int64(*req.TopK))
	}
	return params, nil
}

func classify(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return providers.ClassifyStatus(providerName, apiErr.StatusCode, err)
	}
	return providers.ClassifyTransport(providerName, err)
}
