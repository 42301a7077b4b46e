package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sangrahalaya/ticketbot/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	meta       TEXT NOT NULL DEFAULT '{}',
	embedding  TEXT,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore keeps documents in a local SQLite file. Similarity is computed
// in process over the loaded rows.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path and ensures the schema
func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	logger.Info("sqlite document store ready", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// WriteDocuments upserts the documents in one transaction
func (s *SQLiteStore) WriteDocuments(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, content, meta, embedding, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			meta = excluded.meta,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document %d has no id", i)
		}
		meta, embedding, err := encodeColumns(doc)
		if err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Content, meta, embedding); err != nil {
			return fmt.Errorf("failed to write document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	return nil
}

// DeleteDocuments removes documents by ID
func (s *SQLiteStore) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// ListDocuments returns every document ordered by ID
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, meta, embedding FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var (
			doc       models.Document
			meta      string
			embedding sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := decodeColumns(&doc, meta, embedding); err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// QueryByEmbedding ranks the stored documents by cosine similarity
func (s *SQLiteStore) QueryByEmbedding(ctx context.Context, embedding []float32, topK int) ([]models.Document, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return rankByEmbedding(docs, embedding, topK), nil
}

// CountDocuments returns the number of stored documents
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Ping checks the database handle
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeColumns(doc models.Document) (string, any, error) {
	meta := doc.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode meta: %w", err)
	}

	if doc.Embedding == nil {
		return string(metaJSON), nil, nil
	}
	embeddingJSON, err := json.Marshal(doc.Embedding)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return string(metaJSON), string(embeddingJSON), nil
}

func decodeColumns(doc *models.Document, meta string, embedding sql.NullString) error {
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &doc.Meta); err != nil {
			return fmt.Errorf("failed to decode meta: %w", err)
		}
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &doc.Embedding); err != nil {
			return fmt.Errorf("failed to decode embedding: %w", err)
		}
	}
	return nil
}
