package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sangrahalaya/ticketbot/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Check probes one dependency
type Check func(ctx context.Context) error

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Each named check is run on
// readiness; nil checks are skipped.
func NewHealthHandler(checks map[string]Check, logger *zap.Logger) *HealthHandler {
	active := make(map[string]Check, len(checks))
	for name, check := range checks {
		if check != nil {
			active[name] = check
		}
	}
	return &HealthHandler{
		checks:  active,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Runs every dependency check in parallel and reports each one
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var mu sync.Mutex
	checks := make(map[string]string, len(h.checks))
	allHealthy := true

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name, check := name, h.checks[name]
		g.Go(func() error {
			status := "healthy"
			if err := check(gctx); err != nil {
				h.logger.Warn("readiness check failed",
					zap.String("check", name),
					zap.Error(err))
				status = "unhealthy"
			}

			mu.Lock()
			defer mu.Unlock()
			checks[name] = status
			if status != "healthy" {
				allHealthy = false
			}
			return nil
		})
	}
	_ = g.Wait()

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// DatabaseCheck pings the database and runs a trivial query
func DatabaseCheck(db *sql.DB) Check {
	if db == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		var result int
		return db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	}
}

// AvailabilityCheck adapts a boolean probe such as a generator's IsAvailable
func AvailabilityCheck(name string, available func(ctx context.Context) bool) Check {
	if available == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if !available(ctx) {
			return errors.New(name + " is not available")
		}
		return nil
	}
}
