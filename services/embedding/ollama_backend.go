package embedding

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"
)

const defaultOllamaModel = "nomic-embed-text"

// OllamaBackend embeds texts with a local Ollama server
type OllamaBackend struct {
	client *api.Client
	model  string
}

// NewOllamaBackend creates an Ollama embeddings backend
func NewOllamaBackend(client *api.Client, model string) *OllamaBackend {
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaBackend{client: client, model: model}
}

func (b *OllamaBackend) Name() string  { return "ollama" }
func (b *OllamaBackend) Model() string { return b.model }

// EmbedBatch embeds the texts in one request
func (b *OllamaBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.client.Embed(ctx, &api.EmbedRequest{
		Model: b.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed request failed: %w", err)
	}
	return resp.Embeddings, nil
}
