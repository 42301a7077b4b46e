package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Wrap adapts an open *sql.DB, such as a sqlmock connection
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// schema is idempotent and runs on every start
const schema = `
	-- Museum events; data holds the free-form event document
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Confirmed bookings
	CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		event_id TEXT NOT NULL,
		customer_name VARCHAR(255) NOT NULL,
		phone_number VARCHAR(32) NOT NULL,
		adult_tickets INTEGER NOT NULL DEFAULT 0,
		child_tickets INTEGER NOT NULL DEFAULT 0,
		sr_citizen_tickets INTEGER NOT NULL DEFAULT 0,
		student_tickets INTEGER NOT NULL DEFAULT 0,
		foreigner_tickets INTEGER NOT NULL DEFAULT 0,
		number_of_tickets INTEGER NOT NULL DEFAULT 0,
		amount DECIMAL(12, 2) NOT NULL,
		booking_date VARCHAR(10) NOT NULL,
		booking_time VARCHAR(4) NOT NULL DEFAULT '0000',
		interests JSONB NOT NULL DEFAULT '[]',
		payment_intent_id VARCHAR(255) UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Chat audit trail
	CREATE TABLE IF NOT EXISTS chat_audit_logs (
		id UUID PRIMARY KEY,
		action VARCHAR(100) NOT NULL,
		details JSONB,
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_id VARCHAR(255),
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		model VARCHAR(100),
		provider VARCHAR(100),
		attempts INTEGER,
		tokens_used INTEGER,
		latency_ms INTEGER,
		status_code INTEGER,
		error_message TEXT
	);

	-- Sliding window rate limiting
	CREATE TABLE IF NOT EXISTS rate_limit_events (
		id BIGSERIAL PRIMARY KEY,
		scope_key VARCHAR(255) NOT NULL,
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_bookings_event_id ON bookings(event_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_booking_date ON bookings(booking_date);

	CREATE INDEX IF NOT EXISTS idx_chat_audit_logs_action ON chat_audit_logs(action);
	CREATE INDEX IF NOT EXISTS idx_chat_audit_logs_timestamp ON chat_audit_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_chat_audit_logs_request_id ON chat_audit_logs(request_id);

	CREATE INDEX IF NOT EXISTS idx_rate_limit_events_scope ON rate_limit_events(scope_key, timestamp);
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
