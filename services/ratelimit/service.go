package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RateLimitWindow represents the time window for rate limiting
type RateLimitWindow string

const (
	WindowMinute RateLimitWindow = "minute"
	WindowHour   RateLimitWindow = "hour"
)

// Limits bounds the requests one client may make. Zero disables a window.
type Limits struct {
	RequestsPerMinute int
	RequestsPerHour   int
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed           bool
	RequestsRemaining int
	ResetAt           time.Time
	ViolatedWindow    RateLimitWindow
	ViolationReason   string
}

// RateLimitService limits chat traffic per client IP with a sliding window
// over the rate_limit_events table
type RateLimitService struct {
	db     *sql.DB
	limits Limits
	logger *zap.Logger
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(db *sql.DB, limits Limits, logger *zap.Logger) *RateLimitService {
	return &RateLimitService{
		db:     db,
		limits: limits,
		logger: logger,
	}
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CheckLimit checks whether the client is within every configured window
// without recording anything
func (s *RateLimitService) CheckLimit(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	return s.checkLimits(ctx, s.db, s.buildScopeKey(clientIP), time.Now())
}

// Acquire checks every window and records the request in one transaction.
// A transaction-scoped advisory lock on the client key serializes concurrent
// requests from the same client, so a burst cannot overshoot the limit.
// RequestsRemaining already accounts for the recorded request.
func (s *RateLimitService) Acquire(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	scopeKey := s.buildScopeKey(clientIP)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin rate limit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", scopeKey); err != nil {
		return nil, fmt.Errorf("failed to lock rate limit key: %w", err)
	}

	now := time.Now()
	result, err := s.checkLimits(ctx, tx, scopeKey, now)
	if err != nil || !result.Allowed {
		return result, err
	}

	if err := s.recordEvent(ctx, tx, scopeKey, now); err != nil {
		return nil, fmt.Errorf("failed to record request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rate limit transaction: %w", err)
	}

	if result.RequestsRemaining > 0 {
		result.RequestsRemaining--
	}
	return result, nil
}

func (s *RateLimitService) checkLimits(ctx context.Context, q querier, scopeKey string, now time.Time) (*RateLimitResult, error) {
	windows := []struct {
		window RateLimitWindow
		limit  int
	}{
		{WindowMinute, s.limits.RequestsPerMinute},
		{WindowHour, s.limits.RequestsPerHour},
	}

	result := &RateLimitResult{Allowed: true, RequestsRemaining: -1}
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		allowed, remaining, resetAt, err := s.checkWindow(ctx, q, scopeKey, w.window, now, w.limit)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s window: %w", w.window, err)
		}
		if !allowed {
			return &RateLimitResult{
				Allowed:           false,
				RequestsRemaining: 0,
				ResetAt:           resetAt,
				ViolatedWindow:    w.window,
				ViolationReason:   fmt.Sprintf("exceeded %d requests per %s", w.limit, w.window),
			}, nil
		}
		if result.RequestsRemaining < 0 || remaining < result.RequestsRemaining {
			result.RequestsRemaining = remaining
			result.ResetAt = resetAt
		}
	}

	return result, nil
}

// checkWindow checks if the limit is exceeded for a specific time window
func (s *RateLimitService) checkWindow(ctx context.Context, q querier, scopeKey string, window RateLimitWindow, now time.Time, limit int) (allowed bool, remaining int, resetAt time.Time, err error) {
	windowStart, resetAt := s.getWindowBounds(now, window)

	query := `
		SELECT COUNT(*)
		FROM rate_limit_events
		WHERE scope_key = $1
		  AND timestamp >= $2
		  AND timestamp < $3
	`

	var count int
	err = q.QueryRowContext(ctx, query, scopeKey, windowStart, now).Scan(&count)
	if err != nil {
		return false, 0, resetAt, fmt.Errorf("failed to query rate limit: %w", err)
	}

	if count >= limit {
		return false, 0, resetAt, nil
	}

	return true, limit - count, resetAt, nil
}

// recordEvent records a rate limit event
func (s *RateLimitService) recordEvent(ctx context.Context, q querier, scopeKey string, timestamp time.Time) error {
	query := `
		INSERT INTO rate_limit_events (scope_key, timestamp)
		VALUES ($1, $2)
	`

	if _, err := q.ExecContext(ctx, query, scopeKey, timestamp); err != nil {
		return fmt.Errorf("failed to insert rate limit event: %w", err)
	}

	return nil
}

// getWindowBounds returns the start and reset time for a time window
func (s *RateLimitService) getWindowBounds(now time.Time, window RateLimitWindow) (start time.Time, reset time.Time) {
	switch window {
	case WindowMinute:
		start = now.Add(-1 * time.Minute)
		reset = now.Truncate(time.Minute).Add(time.Minute)
	case WindowHour:
		start = now.Add(-1 * time.Hour)
		reset = now.Truncate(time.Hour).Add(time.Hour)
	}
	return start, reset
}

// buildScopeKey builds the rate limit key of a client
func (s *RateLimitService) buildScopeKey(clientIP string) string {
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		clientIP = "unknown"
	}
	return "chat:ip:" + clientIP
}

// CleanupOldRequests removes old rate limit events to keep the table size manageable
func (s *RateLimitService) CleanupOldRequests(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoffTime := time.Now().Add(-olderThan)

	query := `
		DELETE FROM rate_limit_events
		WHERE timestamp < $1
	`

	result, err := s.db.ExecContext(ctx, query, cutoffTime)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old requests: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Info("cleaned up old rate limit events",
		zap.Int64("rows_deleted", rowsAffected),
		zap.Time("cutoff_time", cutoffTime))

	return rowsAffected, nil
}

// StartCleanupWorker periodically deletes events older than retention until
// ctx is canceled
func (s *RateLimitService) StartCleanupWorker(ctx context.Context, interval time.Duration, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started rate limit cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupOldRequests(ctx, retention); err != nil {
				s.logger.Error("failed to cleanup old requests", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping rate limit cleanup worker")
			return
		}
	}
}

// GetCurrentUsage returns the current usage of a client
func (s *RateLimitService) GetCurrentUsage(ctx context.Context, clientIP string) (*UsageStats, error) {
	scopeKey := s.buildScopeKey(clientIP)
	now := time.Now()
	stats := &UsageStats{}

	query := "SELECT COUNT(*) FROM rate_limit_events WHERE scope_key = $1 AND timestamp >= $2"

	minuteStart, _ := s.getWindowBounds(now, WindowMinute)
	if err := s.db.QueryRowContext(ctx, query, scopeKey, minuteStart).Scan(&stats.RequestsLastMinute); err != nil {
		return nil, err
	}

	hourStart, _ := s.getWindowBounds(now, WindowHour)
	if err := s.db.QueryRowContext(ctx, query, scopeKey, hourStart).Scan(&stats.RequestsLastHour); err != nil {
		return nil, err
	}

	return stats, nil
}

// UsageStats represents current usage statistics
type UsageStats struct {
	RequestsLastMinute int
	RequestsLastHour   int
}
