package embedding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services"
)

// Backend embeds a batch of prepared texts with a hosted embedding model
type Backend interface {
	Name() string
	Model() string
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TextEmbedder embeds a single query string
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// DocumentEmbedder embeds a list of documents
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, docs []models.Document) ([]models.Document, error)
}

// Options controls how texts are prepared before embedding
type Options struct {
	Prefix            string
	Suffix            string
	MetaFieldsToEmbed []string
	Separator         string
	BatchSize         int
}

// DefaultOptions returns the default embedding options
func DefaultOptions() Options {
	return Options{
		Separator: "\n",
		BatchSize: 32,
	}
}

// Embedder implements TextEmbedder and DocumentEmbedder over a Backend
type Embedder struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
}

// NewEmbedder creates a new embedder
func NewEmbedder(backend Backend, opts Options, logger *zap.Logger) *Embedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		backend: backend,
		opts:    opts,
		logger:  logger,
	}
}

// Model returns the embedding model name
func (e *Embedder) Model() string {
	return e.backend.Model()
}

// EmbedText embeds a single query. Empty text is rejected.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.ErrEmptyQuery
	}

	embeddings, err := e.embedBatches(ctx, []string{e.PrepareText(text)})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedDocuments embeds documents in sequential batches and returns copies
// carrying their embeddings. The input documents are left untouched.
func (e *Embedder) EmbedDocuments(ctx context.Context, docs []models.Document) ([]models.Document, error) {
	if len(docs) == 0 {
		return []models.Document{}, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = e.PrepareDocument(doc)
	}

	embeddings, err := e.embedBatches(ctx, texts)
	if err != nil {
		return nil, err
	}

	out := make([]models.Document, len(docs))
	for i, doc := range docs {
		out[i] = doc.Clone()
		out[i].Embedding = embeddings[i]
	}

	e.logger.Debug("embedded documents",
		zap.Int("count", len(docs)),
		zap.String("model", e.backend.Model()),
	)
	return out, nil
}

// PrepareText applies the prefix and suffix and flattens newlines
func (e *Embedder) PrepareText(text string) string {
	return strings.ReplaceAll(e.opts.Prefix+text+e.opts.Suffix, "\n", " ")
}

// PrepareDocument joins the configured meta values and the content with the
// separator, then applies the prefix and suffix and flattens newlines
func (e *Embedder) PrepareDocument(doc models.Document) string {
	parts := make([]string, 0, len(e.opts.MetaFieldsToEmbed)+1)
	for _, key := range e.opts.MetaFieldsToEmbed {
		value, ok := doc.Meta[key]
		if !ok || value == nil {
			continue
		}
		parts = append(parts, fmt.Sprint(value))
	}
	parts = append(parts, doc.Content)

	text := e.opts.Prefix + strings.Join(parts, e.opts.Separator) + e.opts.Suffix
	return strings.ReplaceAll(text, "\n", " ")
}

func (e *Embedder) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := start + e.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.backend.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			e.logger.Error("embedding batch failed",
				zap.String("backend", e.backend.Name()),
				zap.Int("batch_start", start),
				zap.Error(err),
			)
			return nil, services.ErrEmbeddingFailed.Wrap(err)
		}
		if len(batch) != end-start {
			return nil, services.ErrEmbeddingFailed.Wrap(
				fmt.Errorf("expected %d embeddings, got %d", end-start, len(batch)))
		}
		all = append(all, batch...)
	}
	return all, nil
}
