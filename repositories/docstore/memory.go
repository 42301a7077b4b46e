package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/sangrahalaya/ticketbot/models"
)

// MemoryStore is an in-process document store
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]models.Document
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]models.Document)}
}

// WriteDocuments stores copies of the documents, replacing existing IDs
func (s *MemoryStore) WriteDocuments(ctx context.Context, docs []models.Document) error {
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document %d has no id", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		stored := doc.Clone()
		stored.Score = nil
		s.docs[doc.ID] = stored
	}
	return nil
}

// DeleteDocuments removes documents by ID
func (s *MemoryStore) DeleteDocuments(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

// ListDocuments returns copies of every document ordered by ID
func (s *MemoryStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc.Clone())
	}
	sortByID(out)
	return out, nil
}

// QueryByEmbedding ranks the stored documents by cosine similarity
func (s *MemoryStore) QueryByEmbedding(ctx context.Context, embedding []float32, topK int) ([]models.Document, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return rankByEmbedding(docs, embedding, topK), nil
}

// CountDocuments returns the number of stored documents
func (s *MemoryStore) CountDocuments(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
