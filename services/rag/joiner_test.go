package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

func turnMessages() []models.ChatMessage {
	return []models.ChatMessage{
		models.NewSystemMessage("You sell museum tickets."),
		models.NewUserMessage("Hi"),
	}
}

func TestJoiner_FirstAttemptValid(t *testing.T) {
	generator := newScriptedGenerator("  " + validReply + "\n")
	joiner := NewJoiner(generator, ReplySchema, providers.DefaultGenerationConfig(), 3, zap.NewNop())

	messages := turnMessages()
	result, err := joiner.Run(context.Background(), messages)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Attempts)
	require.Len(t, result.History, 3)
	assert.Equal(t, models.NewAssistantMessage(validReply), result.History[2])
	assert.Equal(t, []string{"Indian citizen", "Foreign visitor", "Let me think"}, result.Reply.Suggested)
	assert.Equal(t, 15, result.Usage.Total())
	assert.Len(t, messages, 2)

	req := generator.requests[0]
	assert.True(t, req.JSONMode)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.5, *req.Temperature)
	assert.Equal(t, 8192, req.MaxTokens)
}

func TestJoiner_RetriesWithFeedback(t *testing.T) {
	invalid := `{"response":"Hello"}`
	generator := newScriptedGenerator(invalid, validReply)
	joiner := NewJoiner(generator, ReplySchema, providers.DefaultGenerationConfig(), 3, nil)

	result, err := joiner.Run(context.Background(), turnMessages())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, generator.calls())
	assert.Equal(t, 30, result.Usage.Total())

	// Retry scaffolding stays out of the returned history
	require.Len(t, result.History, 3)
	assert.Equal(t, validReply, result.History[2].Content)

	retry := generator.requests[1].Messages
	require.Len(t, retry, 4)
	assert.Equal(t, turnMessages(), retry[:2])
	assert.Equal(t, models.NewAssistantMessage(invalid), retry[2])
	assert.Equal(t, models.RoleUser, retry[3].Role)
	assert.Contains(t, retry[3].Content, invalid)
	assert.Contains(t, retry[3].Content, "missing properties")
	assert.Contains(t, retry[3].Content, "/required")
	assert.Contains(t, retry[3].Content, ReplySchema.String())
}

func TestJoiner_Exhaustion(t *testing.T) {
	generator := newScriptedGenerator("not json at all")
	joiner := NewJoiner(generator, ReplySchema, providers.DefaultGenerationConfig(), 2, nil)

	_, err := joiner.Run(context.Background(), turnMessages())
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidationExhausted))
	assert.True(t, services.IsExternalError(err))
	assert.Equal(t, 3, generator.calls())

	details := services.GetErrorDetails(err)
	assert.Equal(t, 3, details["attempts"])
	assert.Contains(t, details["validation_error"], "invalid JSON")

	var serr *SchemaError
	assert.True(t, errors.As(err, &serr))
}

func TestJoiner_ZeroRetries(t *testing.T) {
	generator := newScriptedGenerator(`{"suggested":[]}`)
	joiner := NewJoiner(generator, ReplySchema, providers.DefaultGenerationConfig(), -1, nil)

	_, err := joiner.Run(context.Background(), turnMessages())
	assert.True(t, errors.Is(err, services.ErrValidationExhausted))
	assert.Equal(t, 1, generator.calls())
}

func TestJoiner_GeneratorErrorAborts(t *testing.T) {
	cause := providers.NewProviderError("scripted", "RATE_LIMITED", "rate limited by provider", 429, true, nil)
	generator := newScriptedGenerator(validReply)
	generator.err = cause
	joiner := NewJoiner(generator, ReplySchema, providers.DefaultGenerationConfig(), 3, nil)

	_, err := joiner.Run(context.Background(), turnMessages())
	require.Error(t, err)
	assert.Equal(t, 1, generator.calls())
	assert.True(t, errors.Is(err, services.ErrProviderError))

	var provErr *providers.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "RATE_LIMITED", provErr.Code)
}
