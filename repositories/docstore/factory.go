package docstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/config"
	"github.com/sangrahalaya/ticketbot/repositories"
)

// New builds the document store selected by the configuration
func New(ctx context.Context, cfg config.DocumentStoreConfig, logger *zap.Logger) (repositories.DocumentStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath, logger)
	case "weaviate":
		return NewWeaviateStore(ctx, WeaviateConfig{
			URL:     cfg.WeaviateURL,
			APIKey:  cfg.WeaviateKey,
			Class:   cfg.WeaviateClass,
			Timeout: cfg.Timeout,
		}, logger)
	}
	return nil, fmt.Errorf("unknown document store backend %q", cfg.Backend)
}
