package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/sangrahalaya/ticketbot/services"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		HTTPClient:        server.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})

	return NewStripeGateway(Config{
		APIKey:   "sk_test_123",
		Backends: &stripe.Backends{API: backend, Connect: backend, Uploads: backend},
	}, zap.NewNop())
}

func TestStripeGateway_CreateIntent(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "50000", r.PostForm.Get("amount"))
		assert.Equal(t, "inr", r.PostForm.Get("currency"))
		assert.Equal(t, "card", r.PostForm.Get("payment_method_types[0]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":50000,"currency":"inr","status":"requires_payment_method","client_secret":"pi_123_secret_abc"}`))
	})

	intent, err := gateway.CreateIntent(context.Background(), 50000)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, "requires_payment_method", intent.Status)
	assert.Equal(t, int64(50000), intent.Amount)
}

func TestStripeGateway_CreateIntentRejectsNonPositiveAmount(t *testing.T) {
	gateway := NewStripeGateway(Config{APIKey: "sk_test_123"}, zap.NewNop())

	_, err := gateway.CreateIntent(context.Background(), 0)
	assert.True(t, services.IsValidationError(err))
}

func TestStripeGateway_ConfirmIntent(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents/pi_123/confirm", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","amount":50000,"currency":"inr","status":"succeeded"}`))
	})

	intent, err := gateway.ConfirmIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", intent.Status)

	_, err = gateway.ConfirmIntent(context.Background(), "")
	assert.True(t, services.IsValidationError(err))
}

func TestStripeGateway_ProcessorError(t *testing.T) {
	gateway := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`))
	})

	_, err := gateway.ConfirmIntent(context.Background(), "pi_123")
	require.Error(t, err)
	assert.True(t, services.IsPaymentError(err))

	details := services.GetErrorDetails(err)
	assert.Equal(t, "Your card has insufficient funds.", details["processor_message"])
	assert.Equal(t, "card_declined", details["code"])
}
