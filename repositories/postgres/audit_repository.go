package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/models"
	"github.com/sangrahalaya/ticketbot/repositories"
)

const auditColumns = `id, action, details, ip_address, user_agent, request_id, timestamp,
		model, provider, attempts, tokens_used, latency_ms, status_code, error_message`

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `INSERT INTO chat_audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	details := []byte(log.Details)
	if len(details) == 0 {
		details = []byte(`{}`)
	}

	_, err := GetExecutor(ctx, r.db, nil).ExecContext(ctx, query,
		log.ID,
		log.Action,
		details,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.Timestamp,
		log.Model,
		log.Provider,
		log.Attempts,
		log.TokensUsed,
		log.LatencyMs,
		log.StatusCode,
		log.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// GetByRequestID retrieves audit logs by request ID
func (r *AuditRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + `
		FROM chat_audit_logs
		WHERE request_id = $1
		ORDER BY timestamp DESC`

	return r.queryAuditLogs(ctx, query, requestID)
}

// GetByAction retrieves audit logs by action type, newest first
func (r *AuditRepository) GetByAction(ctx context.Context, action models.AuditAction, limit, offset int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + `
		FROM chat_audit_logs
		WHERE action = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3`

	return r.queryAuditLogs(ctx, query, action, limit, offset)
}

// queryAuditLogs is a helper method to query multiple audit logs
func (r *AuditRepository) queryAuditLogs(ctx context.Context, query string, args ...interface{}) ([]*models.AuditLog, error) {
	rows, err := GetExecutor(ctx, r.db, nil).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		log := &models.AuditLog{}
		var details []byte
		err := rows.Scan(
			&log.ID,
			&log.Action,
			&details,
			&log.IPAddress,
			&log.UserAgent,
			&log.RequestID,
			&log.Timestamp,
			&log.Model,
			&log.Provider,
			&log.Attempts,
			&log.TokensUsed,
			&log.LatencyMs,
			&log.StatusCode,
			&log.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		log.Details = details
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}
