package rag

import (
	"context"
	"strings"
	"sync"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

// scriptedGenerator replays canned replies and records every request
type scriptedGenerator struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []*providers.GenerateRequest
}

func newScriptedGenerator(replies ...string) *scriptedGenerator {
	return &scriptedGenerator{replies: replies}
}

func (g *scriptedGenerator) Name() string  { return "scripted" }
func (g *scriptedGenerator) Model() string { return "scripted-model" }

func (g *scriptedGenerator) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	copied := *req
	copied.Messages = append([]models.ChatMessage(nil), req.Messages...)
	g.requests = append(g.requests, &copied)

	if g.err != nil {
		return nil, g.err
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return &providers.GenerateResponse{
		Replies:  []models.ChatMessage{models.NewAssistantMessage(reply)},
		Model:    "scripted-model",
		Provider: "scripted",
		Usage:    providers.Usage{PromptTokens: 10, CompletionTokens: 5},
	}, nil
}

func (g *scriptedGenerator) IsAvailable(ctx context.Context) bool { return true }

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// keywordBackend embeds texts by the topics they mention
type keywordBackend struct {
	texts []string
}

func (b *keywordBackend) Name() string  { return "keyword" }
func (b *keywordBackend) Model() string { return "keyword-embed" }

func (b *keywordBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		b.texts = append(b.texts, text)
		lower := strings.ToLower(text)
		vec := []float32{0.01, 0.01, 0.01}
		if strings.Contains(lower, "sitar") || strings.Contains(lower, "music") {
			vec[0] = 1
		}
		if strings.Contains(lower, "painting") {
			vec[1] = 1
		}
		if strings.Contains(lower, "sculpture") {
			vec[2] = 1
		}
		out[i] = vec
	}
	return out, nil
}

const validReply = `{"response":"Namaste! Are you an Indian citizen or a foreign visitor?","suggested":["Indian citizen","Foreign visitor","Let me think"]}`
