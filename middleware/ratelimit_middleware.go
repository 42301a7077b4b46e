package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/services/ratelimit"
	"github.com/sangrahalaya/ticketbot/utils"
)

// RateLimitChecker checks a client's limits and records the request as one
// atomic step
type RateLimitChecker interface {
	Acquire(ctx context.Context, clientIP string) (*ratelimit.RateLimitResult, error)
}

// RateLimitMiddleware limits chat traffic per client IP
type RateLimitMiddleware struct {
	limiter RateLimitChecker
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. A nil limiter
// disables limiting.
func NewRateLimitMiddleware(limiter RateLimitChecker, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, logger: logger}
}

// Limit rejects requests over the limit with 429. Accepted requests are
// recorded by the limiter. A failing limiter store lets the request through.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	if m.limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		ip := GetClientIPFromContext(ctx)
		if ip == "" {
			ip = clientIP(r)
		}

		result, err := m.limiter.Acquire(ctx, ip)
		if err != nil {
			m.logger.Error("failed to check rate limit",
				zap.String("request_id", requestID),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if !result.Allowed {
			m.logger.Warn("request blocked by rate limit",
				zap.String("request_id", requestID),
				zap.String("client_ip", ip),
				zap.String("window", string(result.ViolatedWindow)))

			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.ResetAt)))
			_ = utils.WriteTooManyRequests(w, result.ViolationReason, map[string]interface{}{
				"window":             string(result.ViolatedWindow),
				"requests_remaining": result.RequestsRemaining,
				"reset_at":           result.ResetAt.Format(time.RFC3339),
			})
			return
		}

		if result.RequestsRemaining >= 0 {
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.RequestsRemaining))
			w.Header().Set("X-RateLimit-Reset", result.ResetAt.Format(time.RFC3339))
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(resetAt time.Time) int {
	seconds := int(time.Until(resetAt).Seconds()) + 1
	if seconds < 1 {
		return 1
	}
	return seconds
}
