package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/services/ratelimit"
)

const testSecret = "museum-admin-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "curator",
			Issuer:    "ticketbot",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestRequestContext(t *testing.T) {
	var requestID, ip, ua string
	handler := chimw.RequestID(chimw.RealIP(RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = GetRequestIDFromContext(r.Context())
		ip = GetClientIPFromContext(r.Context())
		ua = GetUserAgentFromContext(r.Context())
	}))))

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("User-Agent", "kiosk/1.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEmpty(t, requestID)
	assert.Equal(t, "10.0.0.7", ip)
	assert.Equal(t, "kiosk/1.0", ua)

	req = httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.9", ip)
}

func TestHMACValidator(t *testing.T) {
	validator := NewHMACValidator(testSecret, "ticketbot")

	claims, err := validator.ValidateToken(context.Background(), signToken(t, testSecret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "curator", claims.Subject)
	assert.Equal(t, "admin", claims.Role)

	_, err = validator.ValidateToken(context.Background(), signToken(t, "other-secret", validClaims()))
	assert.Error(t, err)

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"
	_, err = validator.ValidateToken(context.Background(), signToken(t, testSecret, wrongIssuer))
	assert.Error(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = validator.ValidateToken(context.Background(), signToken(t, testSecret, expired))
	assert.Error(t, err)

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil
	_, err = validator.ValidateToken(context.Background(), signToken(t, testSecret, noExpiry))
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware(NewHMACValidator(testSecret, ""), zap.NewNop())

	var gotClaims *Claims
	handler := m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims()))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "curator", gotClaims.Subject)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "nope", validClaims()))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("nil validator leaves routes open", func(t *testing.T) {
		open := NewAuthMiddleware(nil, zap.NewNop()).RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		w := httptest.NewRecorder()
		open.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Acquire(ctx context.Context, clientIP string) (*ratelimit.RateLimitResult, error) {
	args := m.Called(ctx, clientIP)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ratelimit.RateLimitResult), args.Error(1)
}

func limitedRequest() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	return req.WithContext(WithClientIP(req.Context(), "10.1.1.1"))
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed request reports remaining after itself", func(t *testing.T) {
		limiter := new(MockRateLimiter)
		limiter.On("Acquire", mock.Anything, "10.1.1.1").Return(&ratelimit.RateLimitResult{
			Allowed:           true,
			RequestsRemaining: 4,
			ResetAt:           time.Now().Add(time.Minute),
		}, nil)

		w := httptest.NewRecorder()
		NewRateLimitMiddleware(limiter, zap.NewNop()).Limit(ok).ServeHTTP(w, limitedRequest())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
		limiter.AssertExpectations(t)
	})

	t.Run("blocked request gets 429", func(t *testing.T) {
		limiter := new(MockRateLimiter)
		limiter.On("Acquire", mock.Anything, "10.1.1.1").Return(&ratelimit.RateLimitResult{
			Allowed:         false,
			ResetAt:         time.Now().Add(30 * time.Second),
			ViolatedWindow:  ratelimit.WindowMinute,
			ViolationReason: "exceeded 20 requests per minute",
		}, nil)

		w := httptest.NewRecorder()
		NewRateLimitMiddleware(limiter, zap.NewNop()).Limit(ok).ServeHTTP(w, limitedRequest())

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), "exceeded 20 requests per minute")
		limiter.AssertExpectations(t)
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		limiter := new(MockRateLimiter)
		limiter.On("Acquire", mock.Anything, "10.1.1.1").Return(nil, errors.New("db down"))

		w := httptest.NewRecorder()
		NewRateLimitMiddleware(limiter, zap.NewNop()).Limit(ok).ServeHTTP(w, limitedRequest())
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
