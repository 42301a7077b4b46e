package providers

import (
	"context"
	"errors"
	"time"

	"github.com/sangrahalaya/ticketbot/models"
)

// Generator represents a hosted LLM that produces chat replies
type Generator interface {
	// Name returns the provider name (e.g., "openai", "anthropic", "ollama")
	Name() string

	// Model returns the model the generator is configured with
	Model() string

	// Generate sends the message list to the model and returns its replies.
	// Transport failures are returned as is; the generator never retries.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is currently reachable
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest is one call to the chat generator
type GenerateRequest struct {
	// Messages in the conversation, oldest first
	Messages []models.ChatMessage

	// Model overrides the configured model when set
	Model string

	// Temperature controls randomness
	Temperature *float64

	// TopP controls nucleus sampling
	TopP *float64

	// TopK limits sampling to the K most likely tokens where supported
	TopK *int

	// MaxTokens limits the response length
	MaxTokens int

	// JSONMode asks the provider to emit a single JSON object
	JSONMode bool
}

// GenerateResponse carries the generated replies
type GenerateResponse struct {
	Replies  []models.ChatMessage
	Model    string
	Provider string
	Usage    Usage
	Latency  time.Duration
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Model used when a request does not name one
	Model string

	// Timeout for requests
	Timeout time.Duration
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout: 60 * time.Second,
	}
}

// GenerationConfig holds the sampling parameters applied to chat turns
type GenerationConfig struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

// DefaultGenerationConfig returns the defaults used for chat turns
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature: 0.5,
		TopP:        0.95,
		TopK:        64,
		MaxTokens:   8192,
	}
}

// Apply copies the sampling parameters onto a request
func (c GenerationConfig) Apply(req *GenerateRequest) *GenerateRequest {
	temperature, topP, topK := c.Temperature, c.TopP, c.TopK
	req.Temperature = &temperature
	req.TopP = &topP
	if topK > 0 {
		req.TopK = &topK
	}
	req.MaxTokens = c.MaxTokens
	return req
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// ClassifyStatus builds a provider error from an HTTP status returned by an SDK
func ClassifyStatus(provider string, statusCode int, cause error) *ProviderError {
	switch {
	case statusCode == 401 || statusCode == 403:
		return NewProviderError(provider, "AUTH_ERROR", "authentication failed", statusCode, false, cause)
	case statusCode == 429:
		return NewProviderError(provider, "RATE_LIMITED", "rate limited by provider", statusCode, true, cause)
	case statusCode >= 500:
		return NewProviderError(provider, "SERVER_ERROR", "provider server error", statusCode, true, cause)
	case statusCode >= 400:
		return NewProviderError(provider, "BAD_REQUEST", "request rejected by provider", statusCode, false, cause)
	}
	return NewProviderError(provider, "HTTP_ERROR", "request failed", statusCode, true, cause)
}

// ClassifyTransport builds a provider error for failures without an HTTP status
func ClassifyTransport(provider string, cause error) *ProviderError {
	if errors.Is(cause, context.DeadlineExceeded) {
		return NewProviderError(provider, "TIMEOUT", "request timed out", 0, true, cause)
	}
	if errors.Is(cause, context.Canceled) {
		return NewProviderError(provider, "CANCELED", "request canceled", 0, false, cause)
	}
	return NewProviderError(provider, "HTTP_ERROR", "request failed", 0, true, cause)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// Total returns the total token count, summing prompt and completion when the
// provider does not report one
func (u Usage) Total() int {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}
