package rag

import (
	"context"
	"time"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/services/providers"
)

// Config tunes the chat pipeline
type Config struct {
	// MaxRetries bounds corrective re-generations per turn
	MaxRetries int

	// QueryTopK is the number of documents retrieved for a visitor turn.
	// Zero disables retrieval.
	QueryTopK int

	// RetrievalThreshold drops retrieved documents scoring below it
	RetrievalThreshold float64

	// Generation holds the sampling parameters of chat turns
	Generation providers.GenerationConfig

	// GenerateModel overrides the model for single-shot generation
	GenerateModel string
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: DefaultMaxRetries,
		Generation: providers.DefaultGenerationConfig(),
	}
}

// Stats summarizes one pipeline operation for auditing
type Stats struct {
	Model     string
	Provider  string
	Attempts  int
	Tokens    int
	Latency   time.Duration
	Documents []string

	// Query is the visitor question of a chat turn
	Query string
}

// Observer is told about every pipeline operation, failed or not
type Observer interface {
	Observe(ctx context.Context, action models.AuditAction, stats Stats, err error)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, models.AuditAction, Stats, error) {}
