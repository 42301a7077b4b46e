package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

// DefaultMaxRetries bounds the corrective re-generations after the first attempt
const DefaultMaxRetries = 3

// ReplySchema validates every assistant turn
var ReplySchema = MustSchema("reply", &Reply{})

// TurnResult is the outcome of one validated chat turn
type TurnResult struct {
	// History is the turn's messages followed by the accepted assistant reply
	History  []models.ChatMessage
	Reply    Reply
	Attempts int
	Usage    providers.Usage
	Model    string
	Provider string
	Latency  time.Duration
}

// Joiner runs the generate-validate loop. A reply that fails validation is
// fed back to the generator with the error until it conforms or the retry
// budget is spent.
type Joiner struct {
	generator  providers.Generator
	schema     *Schema
	generation providers.GenerationConfig
	maxRetries int
	logger     *zap.Logger
}

// NewJoiner creates a joiner validating replies against schema. A negative
// maxRetries is treated as zero.
func NewJoiner(generator providers.Generator, schema *Schema, generation providers.GenerationConfig, maxRetries int, logger *zap.Logger) *Joiner {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Joiner{
		generator:  generator,
		schema:     schema,
		generation: generation,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Run generates a reply for messages. Retry scaffolding never appears in the
// returned history. Generator errors end the loop immediately.
func (j *Joiner) Run(ctx context.Context, messages []models.ChatMessage) (*TurnResult, error) {
	start := time.Now()
	result := &TurnResult{}
	request := messages

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		resp, err := j.generator.Generate(ctx, j.generation.Apply(&providers.GenerateRequest{
			Messages: request,
			JSONMode: true,
		}))
		if err != nil {
			return nil, services.ErrProviderError.Wrap(err).
				WithDetail("provider", j.generator.Name()).
				WithDetail("attempts", attempt)
		}
		result.Model = resp.Model
		result.Provider = resp.Provider
		result.Usage.PromptTokens += resp.Usage.PromptTokens
		result.Usage.CompletionTokens += resp.Usage.CompletionTokens
		result.Usage.TotalTokens += resp.Usage.Total()

		raw := ""
		if reply, ok := models.LastMessage(resp.Replies); ok {
			raw = reply.Content
		}
		content := strings.TrimSpace(raw)

		verr := j.schema.Validate([]byte(content))
		if verr == nil {
			if err := json.Unmarshal([]byte(content), &result.Reply); err != nil {
				return nil, services.WrapInternal("failed to decode validated reply", err)
			}
			history, err := AssembleMessages(content, messages, models.RoleAssistant)
			if err != nil {
				return nil, err
			}
			result.History = history
			result.Latency = time.Since(start)
			return result, nil
		}

		j.logger.Warn("generated reply failed schema validation",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", j.maxRetries),
			zap.Error(verr))

		if attempt > j.maxRetries {
			return nil, services.ErrValidationExhausted.Wrap(verr).
				WithDetail("attempts", attempt).
				WithDetail("validation_error", verr.Error())
		}

		request = j.retryMessages(messages, raw, verr)
	}
}

// retryMessages builds the next request: the turn's messages, the rejected
// reply and a user message describing the failure
func (j *Joiner) retryMessages(messages []models.ChatMessage, invalid string, verr error) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(messages)+2)
	out = append(out, messages...)
	out = append(out,
		models.NewAssistantMessage(invalid),
		models.NewUserMessage(j.feedback(invalid, verr)),
	)
	return out
}

func (j *Joiner) feedback(invalid string, verr error) string {
	message, instancePath, schemaPath := verr.Error(), "", ""
	if serr, ok := verr.(*SchemaError); ok {
		message, instancePath, schemaPath = serr.Message, serr.InstancePath, serr.SchemaPath
	}
	if instancePath == "" {
		instancePath = "/"
	}

	var sb strings.Builder
	sb.WriteString("The JSON you generated does not match the required schema.\n")
	fmt.Fprintf(&sb, "Generated JSON: %s\n", invalid)
	sb.WriteString("Error details:\n")
	fmt.Fprintf(&sb, "- Message: %s\n", message)
	fmt.Fprintf(&sb, "- Error path in JSON: %s\n", instancePath)
	fmt.Fprintf(&sb, "- Schema path: %s\n", schemaPath)
	fmt.Fprintf(&sb, "Match this schema:\n%s\n", j.schema.String())
	sb.WriteString("Reply with the corrected JSON only. Do not use markdown and do not add any other text.")
	return sb.String()
}
