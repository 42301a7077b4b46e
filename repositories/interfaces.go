package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sangrahalaya/ticketbot/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// DocumentStore holds retrievable documents with their embeddings.
// Writes overwrite documents with the same ID.
type DocumentStore interface {
	// WriteDocuments upserts documents by ID
	WriteDocuments(ctx context.Context, docs []models.Document) error

	// DeleteDocuments removes documents by ID; unknown IDs are ignored
	DeleteDocuments(ctx context.Context, ids []string) error

	// ListDocuments returns every stored document ordered by ID
	ListDocuments(ctx context.Context) ([]models.Document, error)

	// QueryByEmbedding returns the topK most similar documents with scores set
	QueryByEmbedding(ctx context.Context, embedding []float32, topK int) ([]models.Document, error)

	// CountDocuments returns the number of stored documents
	CountDocuments(ctx context.Context) (int, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// EventSource supplies the events that seed the document store
type EventSource interface {
	List(ctx context.Context) ([]*models.Event, error)
}

// EventRepository handles museum event data operations
type EventRepository interface {
	EventSource

	// GetByID retrieves an event by ID
	GetByID(ctx context.Context, id string) (*models.Event, error)

	// Upsert creates or replaces an event
	Upsert(ctx context.Context, event *models.Event) error
}

// BookingRepository handles booking data operations
type BookingRepository interface {
	// Create creates a new booking
	Create(ctx context.Context, booking *models.Booking) error

	// GetByID retrieves a booking by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)

	// GetByPaymentIntentID retrieves the booking paid by a payment intent
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Booking, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) BookingRepository
}

// AuditRepository handles chat audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByRequestID retrieves audit logs by request ID
	GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error)

	// GetByAction retrieves audit logs by action type, newest first
	GetByAction(ctx context.Context, action models.AuditAction, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Events       EventRepository
	Bookings     BookingRepository
	AuditLogs    AuditRepository
	Transactions TransactionManager
}
