package rag

import (
	"context"
	"fmt"

	"github.com/sangrahalaya/ticketbot/models"
)

// QueryEmbedder generates a vector embedding for a query string.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex finds the documents closest to an embedding.
type VectorIndex interface {
	QueryByEmbedding(ctx context.Context, embedding []float32, topK int) ([]models.Document, error)
}

// RetrievalOptions configures retrieval behavior.
type RetrievalOptions struct {
	TopK      int
	Threshold float64
}

// Retriever fetches relevant documents for a query.
type Retriever struct {
	embedder QueryEmbedder
	index    VectorIndex
}

// NewRetriever creates a retriever over an embedder and a vector index.
func NewRetriever(embedder QueryEmbedder, index VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve embeds the query and returns up to TopK documents scoring at least
// Threshold. A zero TopK retrieves nothing.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts RetrievalOptions) ([]models.Document, error) {
	if opts.TopK <= 0 {
		return []models.Document{}, nil
	}

	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	docs, err := r.index.QueryByEmbedding(ctx, embedding, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	if opts.Threshold <= 0 {
		return docs, nil
	}
	kept := docs[:0:0]
	for _, doc := range docs {
		if doc.Score != nil && *doc.Score >= opts.Threshold {
			kept = append(kept, doc)
		}
	}
	return kept, nil
}
